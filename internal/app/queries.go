package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/adapters/merger"
	"github.com/flightmesh/flightmesh/internal/adapters/normalize"
	"github.com/flightmesh/flightmesh/internal/adapters/observability"
	"github.com/flightmesh/flightmesh/internal/adapters/router"
	"github.com/flightmesh/flightmesh/internal/domain"
)

const lockTTL = 10 * time.Second

// TTLPair is one popularity tier's fresh/stale window.
type TTLPair struct {
	Fresh time.Duration
	Stale time.Duration
}

// DefaultTierTTLs is the route-tier -> TTL table: top-100 routes get the
// shortest fresh window since their price volatility matters most to
// callers, long-tail routes the longest since they're rarely re-queried
// before prices move anyway.
func DefaultTierTTLs() map[domain.RouteTier]TTLPair {
	return map[domain.RouteTier]TTLPair{
		domain.TierTopRoutes: {Fresh: 5 * time.Minute, Stale: 15 * time.Minute},
		domain.TierMedium:    {Fresh: 30 * time.Minute, Stale: 6 * time.Hour},
		domain.TierLongTail:  {Fresh: 6 * time.Hour, Stale: 24 * time.Hour},
	}
}

// SearchService is the query-side external interface: Search runs the
// cache-aside pipeline (router -> executor -> normalize -> merger), and
// PredictionData serves the route's price history.
type SearchService struct {
	cache    domain.Cache
	history  domain.HistoryStore
	exec     *executor.Executor
	adapters executor.AdapterSet
	scoring  ScoringFunc
	classify RouteClassifier
	tierTTLs map[domain.RouteTier]TTLPair
}

func NewSearchService(cache domain.Cache, history domain.HistoryStore, exec *executor.Executor, adapters executor.AdapterSet) *SearchService {
	return &SearchService{
		cache: cache, history: history, exec: exec, adapters: adapters,
		scoring:  PriceAscendingScoring,
		classify: func(string, string) domain.RouteTier { return domain.TierLongTail },
		tierTTLs: DefaultTierTTLs(),
	}
}

// WithPopularity installs the route-tier classifier (and, optionally, a
// non-default TTL table) a deployment wires from its popularity worklist;
// NewSearchService alone defaults every route to the long-tail tier.
func (s *SearchService) WithPopularity(classify RouteClassifier, tierTTLs map[domain.RouteTier]TTLPair) *SearchService {
	s.classify = classify
	if tierTTLs != nil {
		s.tierTTLs = tierTTLs
	}
	return s
}

// Search returns a merged, ranked SearchResult, serving from cache when
// fresh, triggering a background revalidation when stale, and blocking
// for a live fan-out when expired or absent.
func (s *SearchService) Search(ctx context.Context, q domain.Query) (domain.SearchResult, error) {
	if err := q.Validate(time.Now()); err != nil {
		return domain.SearchResult{}, err
	}

	key := q.QueryKey()
	if entry, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		switch entry.State(time.Now()) {
		case domain.CacheFresh:
			return entry.Result, nil
		case domain.CacheStale:
			go s.revalidate(context.Background(), q, key)
			result := entry.Result
			result.CacheState = domain.CacheStale
			return result, nil
		}
	}

	result, err := s.fanOutAndMerge(ctx, q, s.exec.FirstResponseGrace)
	if err != nil {
		return domain.SearchResult{}, err
	}
	result.CacheState = domain.CacheMiss
	s.store(ctx, key, q, result)
	return result, nil
}

// revalidate refreshes a stale entry under a single-writer lock so
// concurrent cache-aside readers don't all trigger the same fan-out.
func (s *SearchService) revalidate(ctx context.Context, q domain.Query, key string) {
	ok, err := s.cache.TryLock(ctx, key, lockTTL)
	if err != nil || !ok {
		return
	}
	defer s.cache.Unlock(ctx, key)

	result, err := s.fanOutAndMerge(ctx, q, 0)
	if err != nil {
		log.Warn().Str("query_key", key).Err(err).Msg("background revalidation failed")
		return
	}
	result.CacheState = domain.CacheFresh
	s.store(ctx, key, q, result)
}

// fanOutAndMerge runs the router -> executor -> normalize -> merger
// pipeline once. grace > 0 uses the interactive short-circuit; grace == 0
// waits for every adapter to finish or the deadline, whichever is first.
func (s *SearchService) fanOutAndMerge(ctx context.Context, q domain.Query, grace time.Duration) (domain.SearchResult, error) {
	health := s.exec.Breaker.All()
	plans := router.Route(q, health)

	var events <-chan executor.Event
	var background <-chan executor.Event
	if grace > 0 {
		// The stragglers that fall into background must keep running past
		// this request's lifetime, so the dispatch context is detached
		// from ctx (which the caller may cancel the moment it returns)
		// and scoped to the executor's own background deadline instead.
		bgCtx, cancel := context.WithTimeout(context.Background(), s.exec.BackgroundDeadline)
		deadline := time.Now().Add(s.exec.InteractiveDeadline)
		events, background = s.exec.FanOutInteractive(bgCtx, q, plans, s.adapters, deadline)
		key := q.QueryKey()
		go func() {
			defer cancel()
			s.mergeBackgroundIntoCache(context.Background(), q, key, background)
		}()
	} else {
		deadline := time.Now().Add(s.exec.BackgroundDeadline)
		events = s.exec.FanOutBackground(ctx, q, plans, s.adapters, deadline)
	}

	offers, partial, sourceMix := normalizeAndCollect(events, q)

	merged := merger.Merge(offers, q.Currency)
	observability.ObserveMergeDedupRatio(merger.DedupRatio(len(offers), len(merged)))

	if len(merged) == 0 && !partial {
		return domain.SearchResult{}, fmt.Errorf("app: no offers found for %s", q.QueryKey())
	}

	s.recordHistory(context.Background(), merged, q)

	return domain.SearchResult{
		Query:       q,
		Offers:      merged,
		Partial:     partial,
		SourceMix:   sourceMix,
		GeneratedAt: time.Now(),
	}, nil
}

// normalizeAndCollect drains an executor event stream through the
// normalizer, returning the normalized offers plus the partial-result flag
// and per-source offer counts. Shared by the interactive fan-out and the
// straggler merge-back path so both follow the identical pipeline.
func normalizeAndCollect(events <-chan executor.Event, q domain.Query) ([]domain.Offer, bool, map[string]int) {
	var raws []domain.RawOffer
	sourceMix := map[string]int{}
	partial := false

	for ev := range events {
		if ev.Err != nil {
			partial = true
			continue
		}
		if ev.Offer.SourceID != "" {
			raws = append(raws, ev.Offer)
			sourceMix[ev.Offer.SourceID]++
		}
	}

	offers := make([]domain.Offer, 0, len(raws))
	for _, raw := range raws {
		normalizer := normalize.For(raw.Source)
		normalized, err := normalizer(raw, q)
		if err != nil {
			partial = true
			continue
		}
		offers = append(offers, normalized...)
	}
	return offers, partial, sourceMix
}

// mergeBackgroundIntoCache normalizes the stragglers left running past the
// interactive grace window and folds their offers into whatever is
// currently cached for key, so a subsequent identical query observes every
// source that ultimately reported -- not just the ones that beat the grace
// window. Runs under the same per-key lock revalidate uses so it never
// races a concurrent revalidation.
func (s *SearchService) mergeBackgroundIntoCache(ctx context.Context, q domain.Query, key string, background <-chan executor.Event) {
	offers, partial, sourceMix := normalizeAndCollect(background, q)
	if len(offers) == 0 {
		return
	}

	ok, err := s.cache.TryLock(ctx, key, lockTTL)
	if err != nil || !ok {
		return
	}
	defer s.cache.Unlock(ctx, key)

	entry, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Str("query_key", key).Err(err).Msg("background merge: cache read failed")
		return
	}

	combined := offers
	if found {
		combined = append(append([]domain.Offer{}, entry.Result.Offers...), offers...)
		for src, n := range entry.Result.SourceMix {
			sourceMix[src] += n
		}
		partial = partial || entry.Result.Partial
	}

	merged := merger.Merge(combined, q.Currency)
	s.recordHistory(ctx, offers, q)

	result := domain.SearchResult{
		Query:       q,
		Offers:      merged,
		Partial:     partial,
		SourceMix:   sourceMix,
		CacheState:  domain.CacheFresh,
		GeneratedAt: time.Now(),
	}
	s.store(ctx, key, q, result)
}

func (s *SearchService) recordHistory(ctx context.Context, offers []domain.Offer, q domain.Query) {
	if s.history == nil {
		return
	}
	key := q.QueryKey()
	for _, o := range offers {
		for _, p := range o.Prices {
			row := domain.PriceHistoryRow{
				QueryKey:    key,
				Fingerprint: o.Fingerprint(),
				Price:       p,
				ObservedAt:  p.FetchedAt,
				SourceID:    p.SourceID,
			}
			if err := s.history.RecordObservation(ctx, row); err != nil {
				log.Warn().Str("query_key", key).Err(err).Msg("price history write failed")
			}
		}
	}
}

func (s *SearchService) store(ctx context.Context, key string, q domain.Query, result domain.SearchResult) {
	now := time.Now()
	ttl := s.tierTTLs[s.classify(q.Origin, q.Destination)]
	entry := domain.CacheEntry{
		Result:     result,
		StoredAt:   now,
		FreshUntil: now.Add(ttl.Fresh),
		StaleUntil: now.Add(ttl.Stale),
	}
	if err := s.cache.Set(ctx, key, entry); err != nil {
		log.Warn().Str("query_key", key).Err(err).Msg("cache write failed")
	}
}

// PredictionData serves the price-history read model for a route. Any
// price-prediction modeling on top of it is explicitly out of scope here
// and would live in a separate, non-Go service; this module only owns
// the read path it would consume.
func (s *SearchService) PredictionData(ctx context.Context, origin, dest string, from, to time.Time) ([]domain.PriceHistoryRow, error) {
	if s.history == nil {
		return nil, fmt.Errorf("app: no history store configured")
	}
	return s.history.PriceHistory(ctx, origin, dest, from, to)
}
