// Package oauth2cc hand-rolls the OAuth2 client-credentials grant over
// net/http. No vendor SDK or OAuth2 client library appears anywhere in
// the example pack for any GDS or airline distribution API, so this is
// the stdlib-only ambient piece both the gds and officialapi adapters
// share rather than each reimplementing their own token cache.
package oauth2cc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// EarlyRefresh is how long before expiry a cached token is treated as
// stale, so a request never races a token that expires mid-flight.
const EarlyRefresh = 60 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenSource caches one client-credentials token per (tokenURL,
// clientID) pair and refreshes it on demand.
type TokenSource struct {
	hc           *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	ttl          time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New builds a TokenSource. ttl is an upper bound on how long a token is
// trusted even if the server reports a longer expiry (officialapi caches
// for up to 36h per its own contract; gds trusts whatever expires_in the
// server returns).
func New(hc *http.Client, tokenURL, clientID, clientSecret string, ttl time.Duration) *TokenSource {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{hc: hc, tokenURL: tokenURL, clientID: clientID, clientSecret: clientSecret, ttl: ttl}
}

// Token returns a valid access token, fetching or refreshing one if the
// cached token is absent or within EarlyRefresh of expiring.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Until(t.expiresAt) > EarlyRefresh {
		return t.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", t.clientID)
	form.Set("client_secret", t.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth2cc: token request failed with status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("oauth2cc: token response had no access_token")
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if t.ttl > 0 && (lifetime == 0 || lifetime > t.ttl) {
		lifetime = t.ttl
	}
	if lifetime <= 0 {
		lifetime = 10 * time.Minute
	}

	t.token = tr.AccessToken
	t.expiresAt = time.Now().Add(lifetime)
	return t.token, nil
}
