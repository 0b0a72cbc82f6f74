// Package tenant implements the Adapter contract for direct-airline
// ("tenant") search endpoints. One shared *http.Client and manifest of
// per-tenant base URLs back every airline sub-adapter; each tenant gets
// its own rate.Limiter so one airline's quota never starves another's.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// Config describes one airline's direct-search endpoint and credentials.
type Config struct {
	TenantID string
	BaseURL  string
	APIKey   string
	RPS      int
}

// Pool fans Search calls out to per-tenant sub-adapters sharing one
// *http.Client: one shared client across every airline in the pool.
type Pool struct {
	hc       *http.Client
	tenants  map[string]Config
	limiters sync.Map // tenantID -> *rate.Limiter
}

func NewPool(tenants []Config) *Pool {
	byID := make(map[string]Config, len(tenants))
	for _, c := range tenants {
		byID[c.TenantID] = c
	}
	return &Pool{
		hc:      &http.Client{Timeout: 15 * time.Second},
		tenants: byID,
	}
}

func (p *Pool) limiterFor(tenantID string, rps int) *rate.Limiter {
	if v, ok := p.limiters.Load(tenantID); ok {
		return v.(*rate.Limiter)
	}
	if rps <= 0 {
		rps = 8
	}
	l := rate.NewLimiter(rate.Limit(rps), rps)
	actual, _ := p.limiters.LoadOrStore(tenantID, l)
	return actual.(*rate.Limiter)
}

// For returns an Adapter scoped to one tenant's endpoint.
func (p *Pool) For(tenantID string) (domain.Adapter, error) {
	cfg, ok := p.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant: unknown tenant %q", tenantID)
	}
	return &adapter{pool: p, cfg: cfg, rl: p.limiterFor(tenantID, cfg.RPS)}, nil
}

func (p *Pool) IDs() []string {
	out := make([]string, 0, len(p.tenants))
	for id := range p.tenants {
		out = append(out, id)
	}
	return out
}

// FanOut wraps the pool as a single logical Adapter (router plan entry
// "tenant_pool"): one Search call fans out to every configured tenant
// concurrently and merges their raw offers onto one stream, so the rest
// of the fan-out executor never needs to know 8 airlines share this slot.
func (p *Pool) FanOut() domain.Adapter {
	return &fanOutAdapter{pool: p}
}

type fanOutAdapter struct{ pool *Pool }

func (f *fanOutAdapter) SourceID() string { return "tenant_pool" }

func (f *fanOutAdapter) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 32)
	errs := make(chan error, len(f.pool.tenants))

	var wg sync.WaitGroup
	for _, id := range f.pool.IDs() {
		id := id
		a, err := f.pool.For(id)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, suberrs := a.Search(ctx, q, deadline)
			for o := range sub {
				select {
				case offers <- o:
				case <-ctx.Done():
					return
				}
			}
			for e := range suberrs {
				select {
				case errs <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(offers)
		close(errs)
	}()

	return offers, errs
}

func (f *fanOutAdapter) HealthCheck(ctx context.Context) error {
	for _, id := range f.pool.IDs() {
		a, err := f.pool.For(id)
		if err != nil {
			continue
		}
		if err := a.HealthCheck(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("tenant: no healthy tenant in pool")
}

func (f *fanOutAdapter) ClassifyFailure(err error) domain.FailureKind {
	return executor.ClassifyStatus(context.Background(), err)
}

type adapter struct {
	pool *Pool
	cfg  Config
	rl   *rate.Limiter
}

func (a *adapter) SourceID() string { return a.cfg.TenantID }

func (a *adapter) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(offers)
		defer close(errs)

		if err := a.rl.Wait(ctx); err != nil {
			errs <- err
			return
		}

		url := fmt.Sprintf("%s/api/search?origin=%s&destination=%s&date=%s&cabin=%s",
			a.cfg.BaseURL, q.Origin, q.Destination, q.DepartureDate.Format("2006-01-02"), q.Cabin)

		var lastErr error
		var results []map[string]any
	retry:
		for attempt := 0; attempt < 4; attempt++ {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				errs <- err
				return
			}
			req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
			req.Header.Set("Accept", "application/json")

			resp, err := a.pool.hc.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					errs <- ctx.Err()
					return
				}
				lastErr = err
				if attempt < 3 && executor.SleepCtx(ctx, executor.Backoff(attempt)) {
					continue
				}
				errs <- lastErr
				return
			}

			switch resp.StatusCode {
			case http.StatusOK:
				err := json.NewDecoder(resp.Body).Decode(&results)
				resp.Body.Close()
				if err != nil {
					errs <- &executor.ParseError{Recoverable: false, Err: err}
					return
				}
				break retry
			case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
				resp.Body.Close()
				lastErr = &executor.StatusError{StatusCode: resp.StatusCode}
				if attempt < 3 && executor.SleepCtx(ctx, executor.Backoff(attempt)) {
					continue
				}
				errs <- lastErr
				return
			default:
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
				resp.Body.Close()
				errs <- &executor.StatusError{StatusCode: resp.StatusCode, Body: string(b)}
				return
			}
		}

		if len(results) == 0 {
			errs <- &executor.ParseError{Recoverable: true, Err: fmt.Errorf("tenant %s: no itineraries returned", a.cfg.TenantID)}
			return
		}
		for _, r := range results {
			select {
			case offers <- domain.RawOffer{Source: domain.SourceTenant, SourceID: a.cfg.TenantID, Payload: r, FetchedAt: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return offers, errs
}

func (a *adapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := a.pool.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &executor.StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (a *adapter) ClassifyFailure(err error) domain.FailureKind {
	return executor.ClassifyStatus(context.Background(), err)
}
