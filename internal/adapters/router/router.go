// Package router implements the Source Router: a pure function mapping a
// Query and the current adapter health snapshot to an ordered plan of
// adapters to fan out to, per the coverage table and selection rules.
package router

import (
	"sort"

	"github.com/flightmesh/flightmesh/internal/domain"
)

// Tier orders adapters within a route plan; lower tiers are preferred and
// are always included, higher tiers (browser) are added only when nothing
// lower-tier covers the route (the Open Question resolution recorded in
// DESIGN.md).
type Tier int

const (
	TierPrimary Tier = iota
	TierSecondary
	TierFallback // demoted here by rule 2 below, rather than dropped outright
	TierLastResort
)

// minHealthSample is the minimum rolling-window request count a source
// needs before its success rate is trusted enough to demote it; a source
// that's barely been called yet shouldn't be punished for one bad data
// point.
const minHealthSample = 10

// successRateFloor is the last-hour success rate below which a source is
// demoted to the fallback tier.
const successRateFloor = 0.5

// RoutePlan names one adapter selected for a query, along with the tier it
// was selected at.
type RoutePlan struct {
	AdapterID string
	Kind      domain.SourceKind
	Tier      Tier
}

type region string

// regionOf buckets an IATA code into a coarse region for the coverage
// table; a real implementation would load this from reference data, but
// the table itself already models the routing decision, so a handful of
// representative regions is sufficient here.
var airportRegion = map[string]region{
	"JFK": "NA", "LAX": "NA", "ORD": "NA", "YYZ": "NA",
	"LHR": "EU", "CDG": "EU", "FRA": "EU", "IST": "EU",
	"NRT": "APAC", "ICN": "APAC", "SIN": "APAC", "HKG": "APAC",
	"DXB": "ME", "DOH": "ME",
	"GRU": "SA", "EZE": "SA",
}

func regionOf(iata string) region {
	if r, ok := airportRegion[iata]; ok {
		return r
	}
	return "UNKNOWN"
}

// coverageEntry is one row of the static coverage table: plain Go data
// rather than a rules engine.
type coverageEntry struct {
	originRegion region
	destRegion   region
	cabin        domain.Cabin
	adapters     []RoutePlan
}

// CoverageTable is seeded from a small embedded table, keyed by
// (originRegion, destRegion, cabin). It is intentionally static:
// coverage-table auto-tuning is out of scope (see DESIGN.md Open Question).
var coverageTable = []coverageEntry{
	{originRegion: "NA", destRegion: "EU", cabin: domain.CabinEconomy, adapters: []RoutePlan{
		{AdapterID: "google_flights", Kind: domain.SourceBinaryMeta, Tier: TierPrimary},
		{AdapterID: "kiwi", Kind: domain.SourceAggregator, Tier: TierPrimary},
		{AdapterID: "tenant_pool", Kind: domain.SourceTenant, Tier: TierSecondary},
		{AdapterID: "amadeus", Kind: domain.SourceGDS, Tier: TierSecondary},
	}},
	{originRegion: "NA", destRegion: "APAC", cabin: domain.CabinEconomy, adapters: []RoutePlan{
		{AdapterID: "google_flights", Kind: domain.SourceBinaryMeta, Tier: TierPrimary},
		{AdapterID: "kiwi", Kind: domain.SourceAggregator, Tier: TierPrimary},
		{AdapterID: "amadeus", Kind: domain.SourceGDS, Tier: TierSecondary},
	}},
	{originRegion: "EU", destRegion: "ME", cabin: domain.CabinBusiness, adapters: []RoutePlan{
		{AdapterID: "official_partner", Kind: domain.SourceOfficial, Tier: TierPrimary},
		{AdapterID: "amadeus", Kind: domain.SourceGDS, Tier: TierPrimary},
		{AdapterID: "tenant_pool", Kind: domain.SourceTenant, Tier: TierSecondary},
	}},
}

var defaultPlan = []RoutePlan{
	{AdapterID: "kiwi", Kind: domain.SourceAggregator, Tier: TierPrimary},
	{AdapterID: "amadeus", Kind: domain.SourceGDS, Tier: TierSecondary},
	{AdapterID: "reverse_pool", Kind: domain.SourceReverse, Tier: TierSecondary},
}

var lastResort = RoutePlan{AdapterID: "browser_pool", Kind: domain.SourceBrowser, Tier: TierLastResort}

// Route applies three selection rules:
//  1. prefer adapters the coverage table lists for the query's region pair
//     and cabin, falling back to a generic default when no row matches;
//  2. drop any adapter whose circuit is OPEN, and demote any adapter whose
//     rolling last-hour success rate has fallen below successRateFloor to
//     the fallback tier instead of dropping it outright;
//  3. add the browser last-resort tier only if nothing survived rule 2.
func Route(q domain.Query, health []domain.SourceHealth) []RoutePlan {
	candidates := lookup(q)

	byID := make(map[string]domain.SourceHealth, len(health))
	for _, h := range health {
		byID[h.SourceID] = h
	}

	plans := make([]RoutePlan, 0, len(candidates))
	for _, c := range candidates {
		h, tracked := byID[c.AdapterID]
		if tracked && h.State == domain.CircuitOpen {
			continue
		}
		if tracked && h.WindowRequests >= minHealthSample && h.SuccessRate() < successRateFloor && c.Tier < TierFallback {
			c.Tier = TierFallback
		}
		plans = append(plans, c)
	}

	if len(plans) == 0 && byID[lastResort.AdapterID].State != domain.CircuitOpen {
		plans = append(plans, lastResort)
	}

	sort.SliceStable(plans, func(i, j int) bool { return plans[i].Tier < plans[j].Tier })
	return plans
}

func lookup(q domain.Query) []RoutePlan {
	or, dr := regionOf(q.Origin), regionOf(q.Destination)
	for _, row := range coverageTable {
		if row.originRegion == or && row.destRegion == dr && row.cabin == q.Cabin {
			return append([]RoutePlan{}, row.adapters...)
		}
	}
	return append([]RoutePlan{}, defaultPlan...)
}
