// Package browser implements the Adapter contract for last-resort
// browser-automation crawling. No browser-automation driver (chromedp,
// Playwright-go) ships in the example pack, so the pool and navigation
// steps are modeled behind an explicit interface a real driver can
// satisfy later without the executor ever changing.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// Session is the substitutable boundary a real browser driver implements.
// Nothing in this package or the executor depends on how Navigate,
// FillForm, or InterceptXHR are actually carried out.
type Session interface {
	Navigate(ctx context.Context, url string) error
	FillForm(ctx context.Context, fields map[string]string) error
	InterceptXHR(ctx context.Context, pattern string) (<-chan []byte, error)
	Close() error
}

// SessionFactory creates a fresh Session, injected so tests can supply a
// fake without touching this package.
type SessionFactory func(ctx context.Context) (Session, error)

// Pool leases a fixed number of concurrent browser sessions, the scarcest
// resource a browser-automation adapter has. Leases are scoped: Search
// takes a slot before opening a session and returns it on every exit path.
type Pool struct {
	sourceID   string
	searchURL  string
	slots      chan struct{}
	newSession SessionFactory
}

func NewPool(sourceID, searchURL string, size int, factory SessionFactory) *Pool {
	if size <= 0 {
		size = 2
	}
	p := &Pool{sourceID: sourceID, searchURL: searchURL, slots: make(chan struct{}, size), newSession: factory}
	for i := 0; i < size; i++ {
		p.slots <- struct{}{}
	}
	return p
}

func (p *Pool) SourceID() string { return p.sourceID }

func (p *Pool) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(offers)
		defer close(errs)

		select {
		case <-p.slots:
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		}
		defer func() { p.slots <- struct{}{} }()

		sess, err := p.newSession(ctx)
		if err != nil {
			errs <- err
			return
		}
		defer sess.Close()

		if err := sess.Navigate(ctx, p.searchURL); err != nil {
			errs <- err
			return
		}
		fields := map[string]string{
			"origin":      q.Origin,
			"destination": q.Destination,
			"date":        q.DepartureDate.Format("2006-01-02"),
			"cabin":       string(q.Cabin),
		}
		if err := sess.FillForm(ctx, fields); err != nil {
			errs <- err
			return
		}

		frames, err := sess.InterceptXHR(ctx, "*/search/results*")
		if err != nil {
			errs <- err
			return
		}

		var n int
		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					if n == 0 {
						errs <- &executor.ParseError{Recoverable: true, Err: fmt.Errorf("browser: no search-result XHR observed")}
					}
					return
				}
				var results []map[string]any
				if err := json.Unmarshal(frame, &results); err != nil {
					errs <- &executor.ParseError{Recoverable: false, Err: err}
					return
				}
				for _, r := range results {
					n++
					select {
					case offers <- domain.RawOffer{Source: domain.SourceBrowser, SourceID: p.sourceID, Payload: r, FetchedAt: time.Now()}:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			case <-time.After(time.Until(deadline)):
				return
			}
		}
	}()

	return offers, errs
}

func (p *Pool) HealthCheck(ctx context.Context) error {
	sess, err := p.newSession(ctx)
	if err != nil {
		return err
	}
	return sess.Close()
}

func (p *Pool) ClassifyFailure(err error) domain.FailureKind {
	return executor.ClassifyStatus(context.Background(), err)
}
