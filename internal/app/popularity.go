package app

import "github.com/flightmesh/flightmesh/internal/domain"

// RouteClassifier buckets a query's origin/destination pair into a cache
// TTL tier. NewPopularityTable builds the production implementation off
// the same route worklist the refresh scheduler sweeps; tests and
// single-tier deployments can supply a constant function instead.
type RouteClassifier func(origin, dest string) domain.RouteTier

// PopularityTable classifies routes into the top/medium/long-tail tiers
// from two static sets, falling through to long-tail for anything in
// neither -- the same "static table, no auto-tuning" shape router.go's
// coverage table uses, since a real popularity ranking is a search-log
// analytics job outside this module.
type PopularityTable struct {
	top    map[string]bool
	medium map[string]bool
}

// NewPopularityTable builds a PopularityTable from two route lists. A
// route present in both is classified at the more favorable (top) tier.
func NewPopularityTable(top, medium []Route) *PopularityTable {
	t := &PopularityTable{top: make(map[string]bool, len(top)), medium: make(map[string]bool, len(medium))}
	for _, r := range top {
		t.top[routeKey(r.Origin, r.Destination)] = true
	}
	for _, r := range medium {
		t.medium[routeKey(r.Origin, r.Destination)] = true
	}
	return t
}

func routeKey(origin, dest string) string { return origin + ":" + dest }

// Classify implements RouteClassifier.
func (t *PopularityTable) Classify(origin, dest string) domain.RouteTier {
	key := routeKey(origin, dest)
	switch {
	case t.top[key]:
		return domain.TierTopRoutes
	case t.medium[key]:
		return domain.TierMedium
	default:
		return domain.TierLongTail
	}
}
