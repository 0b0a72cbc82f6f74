package reverse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flightmesh/flightmesh/internal/domain"
)

func TestNew_UnknownAirlineErrors(t *testing.T) {
	if _, err := New("not_in_manifest", 5); err == nil {
		t.Fatal("expected an error for an airline with no manifest entry")
	}
}

func TestSearch_BlockedStatusClassifiedAsBotChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Channel-Code"); got == "" {
			t.Errorf("expected channel-code header to be set")
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New("reverse_skyline", 50)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.ep.URL = srv.URL
	c.ep.WarmupURL = ""

	q := domain.Query{Origin: "JFK", Destination: "LHR", DepartureDate: time.Now().Add(48 * time.Hour)}
	offers, errs := c.Search(context.Background(), q, time.Now().Add(time.Second))
	for range offers {
	}
	err = <-errs
	if err == nil {
		t.Fatal("expected an error")
	}
	if kind := c.ClassifyFailure(err); kind != domain.FailureBotChallenge {
		t.Fatalf("expected FailureBotChallenge, got %s", kind)
	}
}

func TestSearch_SuccessDecodesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"carrier": "SK"}})
	}))
	defer srv.Close()

	c, err := New("reverse_altura", 50)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.ep.URL = srv.URL

	q := domain.Query{Origin: "JFK", Destination: "LHR", DepartureDate: time.Now().Add(48 * time.Hour)}
	offers, errs := c.Search(context.Background(), q, time.Now().Add(time.Second))
	var got []domain.RawOffer
	for o := range offers {
		got = append(got, o)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(got))
	}
}

func TestNewPool_BuildsOneClientPerManifestEntry(t *testing.T) {
	pool := NewPool(50)
	if pool.SourceID() != "reverse_pool" {
		t.Fatalf("SourceID = %q, want reverse_pool", pool.SourceID())
	}
	if len(pool.clients) != len(knownAirlines()) {
		t.Fatalf("expected %d clients, got %d", len(knownAirlines()), len(pool.clients))
	}
}
