// Package officialapi implements the Adapter contract for an airline's
// own published distribution API, as distinct from its undocumented
// front-end endpoint (see internal/adapters/sources/reverse). Same
// OAuth2 client-credentials shape as gds, but its own package per the
// adapter-per-source contract, with a longer-lived 36h token cache
// since official distribution APIs tend to issue long-lived tokens.
package officialapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/adapters/oauth2cc"
	"github.com/flightmesh/flightmesh/internal/domain"
)

const tokenTTL = 36 * time.Hour

type Client struct {
	sourceID string
	base     string
	hc       *http.Client
	tokens   *oauth2cc.TokenSource
	rl       *rate.Limiter
}

func New(sourceID, base, tokenURL, clientID, clientSecret string, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	hc := &http.Client{Timeout: 20 * time.Second}
	return &Client{
		sourceID: sourceID,
		base:     base,
		hc:       hc,
		tokens:   oauth2cc.New(hc, tokenURL, clientID, clientSecret, tokenTTL),
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (c *Client) SourceID() string { return c.sourceID }

func (c *Client) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(offers)
		defer close(errs)

		if err := c.rl.Wait(ctx); err != nil {
			errs <- err
			return
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			errs <- err
			return
		}

		url := fmt.Sprintf("%s/offers/search?origin=%s&destination=%s&date=%s&cabin=%s",
			c.base, q.Origin, q.Destination, q.DepartureDate.Format("2006-01-02"), q.Cabin)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			errs <- &executor.StatusError{StatusCode: resp.StatusCode}
			return
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			errs <- &executor.StatusError{StatusCode: resp.StatusCode, Body: string(b)}
			return
		}

		var results []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			errs <- &executor.ParseError{Recoverable: false, Err: err}
			return
		}
		for _, r := range results {
			select {
			case offers <- domain.RawOffer{Source: domain.SourceOfficial, SourceID: c.sourceID, Payload: r, FetchedAt: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return offers, errs
}

func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.tokens.Token(ctx); err != nil {
		return err
	}
	return nil
}

func (c *Client) ClassifyFailure(err error) domain.FailureKind {
	return executor.ClassifyStatus(context.Background(), err)
}
