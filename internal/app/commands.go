package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/flightmesh/flightmesh/internal/domain"
)

// RefreshScheduler periodically sweeps a static route list, bounding
// concurrency with golang.org/x/sync/semaphore.Weighted, one goroutine
// per route and a sync.WaitGroup per tick.
type RefreshScheduler struct {
	search  *SearchService
	routes  []Route
	workers int
	every   time.Duration
}

// Route is one popularity-table entry the scheduler periodically revisits.
type Route struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	Cabin         domain.Cabin
	Currency      string
}

func NewRefreshScheduler(search *SearchService, routes []Route, workers int, every time.Duration) *RefreshScheduler {
	if workers <= 0 {
		workers = 4
	}
	if every <= 0 {
		every = 5 * time.Minute
	}
	return &RefreshScheduler{search: search, routes: routes, workers: workers, every: every}
}

// Run blocks, ticking every s.every, until ctx is cancelled.
func (s *RefreshScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("refresh scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *RefreshScheduler) tick(ctx context.Context) {
	sem := semaphore.NewWeighted(int64(s.workers))
	var wg sync.WaitGroup

	for _, route := range s.routes {
		route := route
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("refresh scheduler semaphore acquire failed")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			s.refreshOne(ctx, route)
		}()
	}
	wg.Wait()
	log.Info().Int("routes", len(s.routes)).Msg("refresh sweep completed")
}

func (s *RefreshScheduler) refreshOne(ctx context.Context, route Route) {
	q := domain.Query{
		Origin:        route.Origin,
		Destination:   route.Destination,
		DepartureDate: route.DepartureDate,
		Cabin:         route.Cabin,
		Currency:      route.Currency,
		Passengers:    domain.Passengers{Adults: 1},
		TripType:      domain.TripOneWay,
	}
	key := q.QueryKey()

	// revalidate is idempotent under the same TryLock a cache-aside Search
	// call would contend on, so a scheduled sweep and an organic stale-hit
	// revalidation of the same key never race each other.
	s.search.revalidate(ctx, q, key)
}
