// Package reverse implements the Adapter contract for undocumented,
// reverse-engineered airline search endpoints: the ones with no public
// API, reached the same way the airline's own web front-end reaches
// them, including its channel-code header and HMAC request signature.
package reverse

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/domain"
)

type Client struct {
	airlineID string
	ep        endpoint
	hc        *http.Client
	rl        *rate.Limiter

	warmupOnce sync.Once
	warmupErr  error
}

func New(airlineID string, rps int) (*Client, error) {
	ep, ok := lookup(airlineID)
	if !ok {
		return nil, fmt.Errorf("reverse: no manifest entry for %q (known: %v)", airlineID, knownAirlines())
	}
	if rps <= 0 {
		rps = 3
	}
	return &Client{
		airlineID: airlineID,
		ep:        ep,
		hc:        &http.Client{Timeout: 15 * time.Second},
		rl:        rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (c *Client) SourceID() string { return c.airlineID }

func (c *Client) warmup(ctx context.Context) error {
	if c.ep.WarmupURL == "" {
		return nil
	}
	c.warmupOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ep.WarmupURL, nil)
		if err != nil {
			c.warmupErr = err
			return
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			c.warmupErr = err
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	})
	return c.warmupErr
}

func (c *Client) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(offers)
		defer close(errs)

		if err := c.warmup(ctx); err != nil {
			errs <- err
			return
		}
		if err := c.rl.Wait(ctx); err != nil {
			errs <- err
			return
		}

		payload, err := json.Marshal(map[string]string{
			"origin": q.Origin, "destination": q.Destination,
			"date": q.DepartureDate.Format("2006-01-02"), "cabin": string(q.Cabin),
		})
		if err != nil {
			errs <- err
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ep.URL, bytes.NewReader(payload))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Channel-Code", c.ep.ChannelCode)
		req.Header.Set("X-Signature", sign(c.ep.HMACKeyEnv, payload))

		resp, err := c.hc.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			errs <- &executor.BlockedError{Reason: fmt.Sprintf("status %d from reverse endpoint", resp.StatusCode)}
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
			case offers <- domain.RawOffer{Source: domain.SourceReverse, SourceID: c.airlineID, Payload: r, FetchedAt: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return offers, errs
}

// sign computes the HMAC-SHA256 signature the airline's own front-end
// attaches to every search request, keyed by a per-airline secret kept
// out of the manifest and read from the environment at call time.
func sign(keyEnv string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(os.Getenv(keyEnv)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ep.URL, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (c *Client) ClassifyFailure(err error) domain.FailureKind {
	return executor.ClassifyStatus(context.Background(), err)
}

// Pool wraps every manifest-known airline's Client as one logical Adapter
// (router plan entry "reverse_pool"): the undocumented-endpoint variant is
// secondary-tier by design, so one rate-limited fan-out across all
// airlines is enough.
type Pool struct {
	clients []*Client
}

// NewPool builds a Client for every manifest-known airline, skipping any
// airline New rejects rather than failing the pool. Whether an airline's
// HMAC secret env var is set is not checked here.
func NewPool(rps int) *Pool {
	p := &Pool{}
	for _, airlineID := range knownAirlines() {
		c, err := New(airlineID, rps)
		if err != nil {
			continue
		}
		p.clients = append(p.clients, c)
	}
	return p
}

func (p *Pool) SourceID() string { return "reverse_pool" }

func (p *Pool) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 32)
	errs := make(chan error, len(p.clients))

	var wg sync.WaitGroup
	for _, c := range p.clients {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, suberrs := c.Search(ctx, q, deadline)
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

func (p *Pool) HealthCheck(ctx context.Context) error {
	for _, c := range p.clients {
		if err := c.HealthCheck(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("reverse: no healthy airline in pool")
}

func (p *Pool) ClassifyFailure(err error) domain.FailureKind {
	return executor.ClassifyStatus(context.Background(), err)
}
