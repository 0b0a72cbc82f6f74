package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/app"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// ---- fakes ----

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	locks   map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]domain.CacheEntry{}, locks: map[string]bool{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, entry domain.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] {
		return false, nil
	}
	c.locks[key] = true
	return true, nil
}

func (c *fakeCache) Unlock(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, key)
	return nil
}

type fakeHistory struct {
	mu   sync.Mutex
	rows []domain.PriceHistoryRow
}

func (h *fakeHistory) RecordObservation(ctx context.Context, row domain.PriceHistoryRow) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = append(h.rows, row)
	return nil
}

func (h *fakeHistory) PriceHistory(ctx context.Context, origin, dest string, from, to time.Time) ([]domain.PriceHistoryRow, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.PriceHistoryRow{}, h.rows...), nil
}

type fakeAdapter struct {
	id     string
	payload map[string]any
}

func (f *fakeAdapter) SourceID() string { return f.id }

func (f *fakeAdapter) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 1)
	errs := make(chan error, 1)
	offers <- domain.RawOffer{Source: domain.SourceAggregator, SourceID: f.id, Payload: f.payload, FetchedAt: time.Now()}
	close(offers)
	close(errs)
	return offers, errs
}

func (f *fakeAdapter) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeAdapter) ClassifyFailure(err error) domain.FailureKind {
	return domain.FailureTransientNetwork
}

func sampleQuery() domain.Query {
	return domain.Query{
		Origin: "JFK", Destination: "LHR",
		DepartureDate: time.Now().Add(48 * time.Hour),
		Cabin:         domain.CabinEconomy,
		Currency:      "USD",
		Passengers:    domain.Passengers{Adults: 1},
		TripType:      domain.TripOneWay,
	}
}

func samplePayload(price float64) map[string]any {
	return map[string]any{
		"price":    price,
		"currency": "USD",
		"segments": []map[string]any{
			{
				"carrier":   "AA",
				"flight":    "100",
				"origin":    "JFK",
				"destination": "LHR",
				"departure_time": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
				"arrival_time":   time.Now().Add(55 * time.Hour).Format(time.RFC3339),
			},
		},
	}
}

// ---- tests ----

func TestSearch_CacheMissFetchesAndStores(t *testing.T) {
	cache := newFakeCache()
	hist := &fakeHistory{}
	exec := executor.NewExecutor()
	adapters := executor.AdapterSet{
		"kiwi": &fakeAdapter{id: "kiwi", payload: samplePayload(410)},
	}
	svc := app.NewSearchService(cache, hist, exec, adapters)

	q := sampleQuery()
	result, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Offers) != 1 {
		t.Fatalf("expected 1 merged offer, got %d", len(result.Offers))
	}
	if result.CacheState != domain.CacheMiss {
		t.Fatalf("expected MISS cache state on first fetch, got %s", result.CacheState)
	}

	if _, ok, _ := cache.Get(context.Background(), q.QueryKey()); !ok {
		t.Fatal("expected the result to have been stored in the cache")
	}
}

func TestSearch_FreshCacheHitSkipsFanOut(t *testing.T) {
	cache := newFakeCache()
	hist := &fakeHistory{}
	exec := executor.NewExecutor()
	calls := 0
	adapters := executor.AdapterSet{
		"kiwi": &countingAdapter{id: "kiwi", payload: samplePayload(410), calls: &calls},
	}
	svc := app.NewSearchService(cache, hist, exec, adapters)

	q := sampleQuery()
	if _, err := svc.Search(context.Background(), q); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := svc.Search(context.Background(), q); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 fan-out while the cache entry is fresh, got %d", calls)
	}
}

type countingAdapter struct {
	id      string
	payload map[string]any
	calls   *int
}

func (f *countingAdapter) SourceID() string { return f.id }

func (f *countingAdapter) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	*f.calls++
	offers := make(chan domain.RawOffer, 1)
	errs := make(chan error, 1)
	offers <- domain.RawOffer{Source: domain.SourceAggregator, SourceID: f.id, Payload: f.payload, FetchedAt: time.Now()}
	close(offers)
	close(errs)
	return offers, errs
}

func (f *countingAdapter) HealthCheck(ctx context.Context) error { return nil }
func (f *countingAdapter) ClassifyFailure(err error) domain.FailureKind {
	return domain.FailureTransientNetwork
}

type slowAdapter struct {
	id      string
	payload map[string]any
	delay   time.Duration
}

func (f *slowAdapter) SourceID() string { return f.id }

func (f *slowAdapter) Search(ctx context.Context, q domain.Query, deadline time.Time) (<-chan domain.RawOffer, <-chan error) {
	offers := make(chan domain.RawOffer, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(offers)
		defer close(errs)
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return
		}
		offers <- domain.RawOffer{Source: domain.SourceGDS, SourceID: f.id, Payload: f.payload, FetchedAt: time.Now()}
	}()
	return offers, errs
}

func (f *slowAdapter) HealthCheck(ctx context.Context) error { return nil }
func (f *slowAdapter) ClassifyFailure(err error) domain.FailureKind {
	return domain.FailureTransientNetwork
}

func TestSearch_BackgroundStragglerUpdatesCacheEntry(t *testing.T) {
	cache := newFakeCache()
	hist := &fakeHistory{}
	exec := executor.NewExecutor()
	exec.FirstResponseGrace = 20 * time.Millisecond
	adapters := executor.AdapterSet{
		"kiwi":    &fakeAdapter{id: "kiwi", payload: samplePayload(410)},
		"amadeus": &slowAdapter{id: "amadeus", payload: samplePayload(380), delay: 150 * time.Millisecond},
	}
	svc := app.NewSearchService(cache, hist, exec, adapters)

	q := sampleQuery()
	result, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.SourceMix) != 1 {
		t.Fatalf("expected only the fast adapter in the interactive result, got %v", result.SourceMix)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entry, ok, _ := cache.Get(context.Background(), q.QueryKey())
		if ok && len(entry.Result.SourceMix) == 2 {
			if entry.Result.CacheState != domain.CacheFresh {
				t.Fatalf("expected the background-updated entry to be FRESH, got %s", entry.Result.CacheState)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the straggler adapter's offer to update the cache entry")
}

func TestSearch_TopRouteGetsTopTierTTL(t *testing.T) {
	cache := newFakeCache()
	hist := &fakeHistory{}
	exec := executor.NewExecutor()
	adapters := executor.AdapterSet{
		"kiwi": &fakeAdapter{id: "kiwi", payload: samplePayload(410)},
	}
	svc := app.NewSearchService(cache, hist, exec, adapters).WithPopularity(
		func(origin, dest string) domain.RouteTier { return domain.TierTopRoutes },
		nil,
	)

	q := sampleQuery()
	if _, err := svc.Search(context.Background(), q); err != nil {
		t.Fatalf("Search: %v", err)
	}
	entry, ok, _ := cache.Get(context.Background(), q.QueryKey())
	if !ok {
		t.Fatal("expected the result to have been stored in the cache")
	}
	fresh := entry.FreshUntil.Sub(entry.StoredAt)
	if fresh != 5*time.Minute {
		t.Fatalf("expected the top-route tier's 5 minute fresh TTL, got %s", fresh)
	}
}

func TestPredictionData_ReadsThroughToHistoryStore(t *testing.T) {
	cache := newFakeCache()
	hist := &fakeHistory{}
	exec := executor.NewExecutor()
	svc := app.NewSearchService(cache, hist, exec, executor.AdapterSet{})

	hist.rows = append(hist.rows, domain.PriceHistoryRow{QueryKey: "JFK:LHR:...", SourceID: "kiwi"})
	rows, err := svc.PredictionData(context.Background(), "JFK", "LHR", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PredictionData: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}
