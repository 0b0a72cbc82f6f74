package shared

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flightmesh/flightmesh/internal/adapters/executor"
	"github.com/flightmesh/flightmesh/internal/adapters/history"
	"github.com/flightmesh/flightmesh/internal/adapters/sources/aggregator"
	"github.com/flightmesh/flightmesh/internal/adapters/sources/binarymeta"
	"github.com/flightmesh/flightmesh/internal/adapters/sources/browser"
	"github.com/flightmesh/flightmesh/internal/adapters/sources/gds"
	"github.com/flightmesh/flightmesh/internal/adapters/sources/officialapi"
	"github.com/flightmesh/flightmesh/internal/adapters/sources/reverse"
	"github.com/flightmesh/flightmesh/internal/adapters/sources/tenant"
	"github.com/flightmesh/flightmesh/internal/app"
	"github.com/flightmesh/flightmesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// BuildExecutor constructs the shared Fan-out Executor with default breaker
// and grace-window settings, plus the configured interactive/background
// fan-out deadlines; cmd/api and cmd/crawler both fan out through the same
// circuit-breaker/health state, with the executor as sole writer of
// SourceHealth.
func BuildExecutor(cfg Config) *executor.Executor {
	x := executor.NewExecutor()
	x.InteractiveDeadline = cfg.ExecutorInteractiveDeadline
	x.BackgroundDeadline = cfg.ExecutorBackgroundDeadline
	return x
}

// BuildAdapters assembles the AdapterSet keyed by the router's coverage-
// table adapter IDs (router.go) from Config, skipping any adapter whose
// Enabled flag is false or whose required fields are empty so a partial
// deployment (e.g. no browser binary installed) degrades gracefully
// rather than failing startup.
func BuildAdapters(cfg Config) executor.AdapterSet {
	set := executor.AdapterSet{}

	if cfg.BinaryMeta.Enabled && cfg.BinaryMeta.BaseURL != "" {
		set["google_flights"] = binarymeta.New("google_flights", cfg.BinaryMeta.BaseURL, cfg.BinaryMeta.APIKey, cfg.BinaryMeta.RPS)
	}
	if cfg.Aggregator.Enabled && cfg.Aggregator.BaseURL != "" {
		set["kiwi"] = aggregator.New("kiwi", cfg.Aggregator.BaseURL, cfg.Aggregator.APIKey, cfg.Aggregator.RPS)
	}
	if len(cfg.Tenants) > 0 {
		tenants := make([]tenant.Config, 0, len(cfg.Tenants))
		for _, t := range cfg.Tenants {
			tenants = append(tenants, tenant.Config{TenantID: t.TenantID, BaseURL: t.BaseURL, APIKey: t.APIKey, RPS: t.RPS})
		}
		set["tenant_pool"] = tenant.NewPool(tenants).FanOut()
	}
	if cfg.Reverse.Enabled {
		set["reverse_pool"] = reverse.NewPool(cfg.Reverse.RPS)
	}
	if cfg.GDS.Enabled && cfg.GDS.BaseURL != "" {
		set["amadeus"] = gds.New("amadeus", cfg.GDS.BaseURL, cfg.GDS.TokenURL, cfg.GDS.ClientID, cfg.GDS.ClientSecret, cfg.GDS.RPS)
	}
	if cfg.OfficialAPI.Enabled && cfg.OfficialAPI.BaseURL != "" {
		set["official_partner"] = officialapi.New("official_partner", cfg.OfficialAPI.BaseURL, cfg.OfficialAPI.TokenURL, cfg.OfficialAPI.ClientID, cfg.OfficialAPI.ClientSecret, cfg.OfficialAPI.RPS)
	}
	if cfg.Browser.Enabled && cfg.Browser.SearchURL != "" {
		set["browser_pool"] = browser.NewPool("browser_pool", cfg.Browser.SearchURL, cfg.Browser.PoolSize, noBrowserDriver)
	}

	log.Info().Int("adapters", len(set)).Msg("adapter set built")
	return set
}

// noBrowserDriver is the default browser.SessionFactory: no browser-
// automation driver (chromedp, Playwright-go) ships in this deployment, so
// every lease fails fast rather than hanging on a binary that was never
// installed; the pool's circuit breaker demotes "browser_pool" after the
// configured failure threshold like any other unhealthy source.
func noBrowserDriver(ctx context.Context) (browser.Session, error) {
	return nil, fmt.Errorf("browser: no driver installed for this deployment")
}

// TopRoutes seeds both the crawler's periodic refresh worklist and the
// API's cache-tier classifier, so a route the scheduler keeps warm is
// also the route Search's cache entry gets the top-tier TTL for. A real
// deployment would load this from the search log instead of an embedded
// list, but that's a separate analytics pipeline this module only writes
// history for.
var TopRoutes = []app.Route{
	{Origin: "JFK", Destination: "LHR", Cabin: domain.CabinEconomy, Currency: "USD"},
	{Origin: "LAX", Destination: "NRT", Cabin: domain.CabinEconomy, Currency: "USD"},
	{Origin: "ICN", Destination: "NRT", Cabin: domain.CabinEconomy, Currency: "KRW"},
	{Origin: "LHR", Destination: "DXB", Cabin: domain.CabinBusiness, Currency: "GBP"},
}

// BuildTierTTLs reads the route-tier -> cache-TTL table from Config. It
// applies no defaults itself: Load fills each unset duration with the
// same value app.DefaultTierTTLs uses.
func BuildTierTTLs(cfg Config) map[domain.RouteTier]app.TTLPair {
	return map[domain.RouteTier]app.TTLPair{
		domain.TierTopRoutes: {Fresh: cfg.CacheTopFreshTTL, Stale: cfg.CacheTopStaleTTL},
		domain.TierMedium:    {Fresh: cfg.CacheMediumFreshTTL, Stale: cfg.CacheMediumStaleTTL},
		domain.TierLongTail:  {Fresh: cfg.CacheLongTailFreshTTL, Stale: cfg.CacheLongTailStaleTTL},
	}
}

// BuildPopularityClassifier builds the RouteClassifier the refresh
// scheduler's own top-route worklist implies: every route the scheduler
// sweeps is, by construction, a top-100 route, so Search's cache TTL for
// the same route should use the same tier rather than an independent
// guess. Callers with a separate medium-popularity worklist can build
// app.NewPopularityTable directly instead.
func BuildPopularityClassifier(topRoutes []app.Route) app.RouteClassifier {
	table := app.NewPopularityTable(topRoutes, nil)
	return table.Classify
}

// BuildHistoryStore wires the MySQL writer (system of record) and, if
// OpenSearch addresses are configured, the read-model indexer behind it.
func BuildHistoryStore(cfg Config, db *sql.DB) (*history.Store, error) {
	repo := history.NewRepo(db)

	var indexer *history.Indexer
	if len(cfg.OpenSearchAddrs) > 0 {
		ix, err := history.NewIndexer(cfg.OpenSearchAddrs, cfg.OpenSearchUser, cfg.OpenSearchPass)
		if err != nil {
			return nil, err
		}
		indexer = ix
	}

	return history.NewStore(repo, indexer), nil
}
