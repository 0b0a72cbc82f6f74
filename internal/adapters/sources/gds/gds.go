// Package gds implements the Adapter contract for Global Distribution
// System search, authenticated via OAuth2 client-credentials and reached
// over a REST facade, since no vendor GDS SDK ships in the example pack.
package gds

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

type Client struct {
	sourceID string
	base     string
	hc       *http.Client
	tokens   *oauth2cc.TokenSource
	rl       *rate.Limiter
}

func New(sourceID, base, tokenURL, clientID, clientSecret string, rps int) *Client {
	if rps <= 0 {
		rps = 3
	}
	hc := &http.Client{Timeout: 20 * time.Second}
	return &Client{
		sourceID: sourceID,
		base:     base,
		hc:       hc,
		tokens:   oauth2cc.New(hc, tokenURL, clientID, clientSecret, 0),
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

		url := fmt.Sprintf("%s/v1/shopping/flight-offers?origin=%s&destination=%s&departureDate=%s&travelClass=%s&adults=%d",
			c.base, q.Origin, q.Destination, q.DepartureDate.Format("2006-01-02"), q.Cabin, q.Passengers.Adults)

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

		var body struct {
			Data []map[string]any `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			errs <- &executor.ParseError{Recoverable: false, Err: err}
			return
		}
		if len(body.Data) == 0 {
			errs <- &executor.ParseError{Recoverable: true, Err: fmt.Errorf("gds: no flight-offers in response")}
			return
		}

		for _, r := range body.Data {
			select {
			case offers <- domain.RawOffer{Source: domain.SourceGDS, SourceID: c.sourceID, Payload: r, FetchedAt: time.Now()}:
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
