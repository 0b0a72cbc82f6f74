// Package aggregator implements the Adapter contract for third-party
// flight-search aggregators reached over REST with an API key, using a
// candidate-URL fallback pattern: try the modern path first, fall back
// to a legacy path on 404.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/domain"
)

var ErrNotFound = errors.New("aggregator: not found")

// maxRetries caps the retry budget for a TRANSIENT_NETWORK-class failure;
// RATE_LIMITED (HTTP 429) gets none at all.
const maxRetries = 2

// userAgents backs the ROTATE_USER_AGENT anti-bot posture: a handful of
// plausible desktop browser strings to cycle through instead of the
// client's default Go HTTP user agent.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
}

type Client struct {
	sourceID string
	base     string
	key      string
	hc       *http.Client
	rl       *rate.Limiter
}

func New(sourceID, base, key string, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		sourceID: sourceID,
		base:     base,
		key:      key,
		hc:       &http.Client{Timeout: 20 * time.Second, Jar: jar},
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

		if executor.StrategyFromContext(ctx) == executor.StrategyWarmCookies {
			c.warmCookies(ctx)
		}

		candidates := []string{
			fmt.Sprintf("%s/search/flights?origin=%s&destination=%s&date=%s", c.base, q.Origin, q.Destination, q.DepartureDate.Format("2006-01-02")),
			fmt.Sprintf("%s/flights/search?from=%s&to=%s&departure=%s", c.base, q.Origin, q.Destination, q.DepartureDate.Format("2006-01-02")),
		}

		var results []map[string]any
		if err := c.getFirst(ctx, candidates, &results); err != nil {
			errs <- err
			return
		}
		if len(results) == 0 {
			errs <- &executor.ParseError{Recoverable: true, Err: fmt.Errorf("aggregator: no itineraries returned")}
			return
		}

		for _, r := range results {
			select {
			case offers <- domain.RawOffer{Source: domain.SourceAggregator, SourceID: c.sourceID, Payload: r, FetchedAt: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return offers, errs
}

func (c *Client) getFirst(ctx context.Context, urls []string, out any) error {
	var last error
	for _, u := range urls {
		if err := c.get(ctx, u, out); err != nil {
			if errors.Is(err, ErrNotFound) {
				last = err
				continue
			}
			return err
		}
		return nil
	}
	if last != nil {
		return last
	}
	return errors.New("aggregator: no candidate URL succeeded")
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	strategy := executor.StrategyFromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.key)
		req.Header.Set("Accept", "application/json")
		if strategy == executor.StrategyRotateUserAgent {
			req.Header.Set("User-Agent", userAgents[attempt%len(userAgents)])
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if attempt < maxRetries && executor.SleepCtx(ctx, executor.Backoff(attempt)) {
				continue
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err
		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound
		case http.StatusTooManyRequests:
			// RATE_LIMITED never retries -- the caller's breaker/router
			// handles shedding load onto another source instead.
			resp.Body.Close()
			return &executor.StatusError{StatusCode: resp.StatusCode}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = executor.Backoff(attempt)
			}
			lastErr = &executor.StatusError{StatusCode: resp.StatusCode}
			if attempt < maxRetries && executor.SleepCtx(ctx, wait) {
				continue
			}
			return lastErr
		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			return &executor.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
	}
	return lastErr
}

// warmCookies backs the WARM_COOKIES anti-bot posture: a single GET to the
// base URL before the real request, letting the cookie jar pick up
// whatever session cookie the upstream sets on a fresh visit.
func (c *Client) warmCookies(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base, nil)
	if err != nil {
		return
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &executor.StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) ClassifyFailure(err error) domain.FailureKind {
	if errors.Is(err, ErrNotFound) {
		return domain.FailureUpstreamEmpty
	}
	return executor.ClassifyStatus(context.Background(), err)
}
