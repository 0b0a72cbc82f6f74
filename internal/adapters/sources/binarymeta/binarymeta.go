// Package binarymeta implements the Adapter contract for metasearch
// feeds that ship a length-prefixed binary message rather than JSON --
// the kind of wire format flight metasearch aggregators (Google-style
// flight feeds) actually use.
package binarymeta

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// userAgents backs the ROTATE_USER_AGENT anti-bot posture.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
}

// Client queries a binary-metasearch feed. One Client is shared across
// every query for this source: one *http.Client, one rate.Limiter,
// retries with backoff.
type Client struct {
	sourceID string
	base     string
	key      string
	hc       *http.Client
	rl       *rate.Limiter

	consentOnce sync.Once
	consentErr  error
}

func New(sourceID, base, key string, rps int) *Client {
	if rps <= 0 {
		rps = 10
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		sourceID: sourceID,
		base:     base,
		key:      key,
		hc:       &http.Client{Timeout: 15 * time.Second, Jar: jar},
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (c *Client) SourceID() string { return c.sourceID }

// warmConsent performs a single GET to accept the feed's EU cookie-consent
// wall once per process; later requests reuse the client's cookie jar.
func (c *Client) warmConsent(ctx context.Context) error {
	c.consentOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/consent?accept=1", nil)
		if err != nil {
			c.consentErr = err
			return
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			c.consentErr = err
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	})
	return c.consentErr
}

func (c *Client) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(offers)
		defer close(errs)

		if err := c.warmConsent(ctx); err != nil {
			errs <- err
			return
		}

		body, err := c.fetch(ctx, q)
		if err != nil {
			errs <- err
			return
		}

		msgs, err := decodeFrames(body)
		if err != nil {
			errs <- &executor.ParseError{Recoverable: false, Err: err}
			return
		}
		if len(msgs) == 0 {
			errs <- &executor.ParseError{Recoverable: true, Err: fmt.Errorf("binarymeta: empty response")}
			return
		}

		for _, m := range msgs {
			select {
			case offers <- domain.RawOffer{Source: domain.SourceBinaryMeta, SourceID: c.sourceID, Payload: m, FetchedAt: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return offers, errs
}

func (c *Client) fetch(ctx context.Context, q domain.Query) ([]byte, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/search?origin=%s&destination=%s&date=%s&cabin=%s",
		c.base, q.Origin, q.Destination, q.DepartureDate.Format("2006-01-02"), q.Cabin)
	strategy := executor.StrategyFromContext(ctx)

	var lastErr error
	for attempt := 0; attempt < 4; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Key", c.key)
		req.Header.Set("Accept", "application/octet-stream")
		if strategy == executor.StrategyRotateUserAgent {
			req.Header.Set("User-Agent", userAgents[attempt%len(userAgents)])
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt < 3 && executor.SleepCtx(ctx, executor.Backoff(attempt)) {
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusOK {
			b, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			return b, err
		}

		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		statusErr := &executor.StatusError{StatusCode: resp.StatusCode, Body: string(b)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = statusErr
			if attempt < 3 && executor.SleepCtx(ctx, executor.Backoff(attempt)) {
				continue
			}
		}
		return nil, statusErr
	}
	return nil, lastErr
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
	return executor.ClassifyStatus(context.Background(), err)
}

// decodeFrames splits a base64-wrapped, length-prefixed stream of binary
// messages: each frame is a 4-byte big-endian length followed by that
// many bytes of base64 payload, standing in for a protobuf wire format.
func decodeFrames(raw []byte) ([]map[string]any, error) {
	var out []map[string]any
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, fmt.Errorf("binarymeta: truncated frame header")
		}
		n := binary.BigEndian.Uint32(raw[:4])
		raw = raw[4:]
		if uint32(len(raw)) < n {
			return nil, fmt.Errorf("binarymeta: truncated frame body")
		}
		frame := raw[:n]
		raw = raw[n:]

		decoded, err := base64.StdEncoding.DecodeString(string(frame))
		if err != nil {
			return nil, fmt.Errorf("binarymeta: decode frame: %w", err)
		}
		msg, err := parseKVFrame(decoded)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// parseKVFrame decodes a decoded frame's payload, which the upstream
// feed encodes as newline-separated "key=value" pairs -- a minimal
// stand-in for the structured message a real protobuf schema would give.
func parseKVFrame(b []byte) (map[string]any, error) {
	out := map[string]any{}
	start := 0
	for i := 0; i <= len(b); i++ {
		if i == len(b) || b[i] == '\n' {
			line := string(b[start:i])
			start = i + 1
			if line == "" {
				continue
			}
			eq := -1
			for j := 0; j < len(line); j++ {
				if line[j] == '=' {
					eq = j
					break
				}
			}
			if eq < 0 {
				continue
			}
			out[line[:eq]] = line[eq+1:]
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("binarymeta: frame had no key=value pairs")
	}
	return out, nil
}
