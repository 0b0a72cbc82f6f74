package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Config is the process-wide configuration root, read once in main and
// passed down by value. One sub-config per adapter variant plus the
// shared stack (cache, history, HTTP surface), following an
// adapters.<id>.* env var naming convention. No config library is
// introduced: env()/atoi() stay plain stdlib helpers, reused across
// every field.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	RedisAddr string
	RedisDB   int
	RedisPass string

	MySQLDSN        string
	OpenSearchAddrs []string
	OpenSearchUser  string
	OpenSearchPass  string

	RefreshWorkers  int
	RefreshInterval time.Duration

	ExecutorInteractiveDeadline time.Duration
	ExecutorBackgroundDeadline  time.Duration

	// CacheTopFreshTTL/.../CacheLongTailStaleTTL are the route-tier ->
	// cache-TTL table (top-100 routes, medium-popularity routes,
	// long-tail routes); app.DefaultTierTTLs ships the same defaults so
	// an unconfigured deployment still gets tiered TTLs, not one flat
	// value.
	CacheTopFreshTTL      time.Duration
	CacheTopStaleTTL      time.Duration
	CacheMediumFreshTTL   time.Duration
	CacheMediumStaleTTL   time.Duration
	CacheLongTailFreshTTL time.Duration
	CacheLongTailStaleTTL time.Duration

	BinaryMeta  BinaryMetaConfig
	Aggregator  AggregatorConfig
	Tenants     []TenantConfig
	Reverse     ReverseConfig
	GDS         OAuth2AdapterConfig
	OfficialAPI OAuth2AdapterConfig
	Browser     BrowserConfig
}

// BinaryMetaConfig configures the base64-framed binary-metasearch adapter.
type BinaryMetaConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	RPS     int
}

// AggregatorConfig configures the REST aggregator-api adapter.
type AggregatorConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	RPS     int
}

// TenantConfig is one of the shared-tenant-key adapter's per-airline entries.
type TenantConfig struct {
	TenantID string
	BaseURL  string
	APIKey   string
	RPS      int
}

// ReverseConfig configures the per-airline-reverse adapter pool. The
// undocumented-endpoint manifest itself (URLs, channel codes, HMAC key env
// var names) stays a static in-repo table, not runtime config, since it is
// discovered via traffic inspection rather than issued per deployment; this
// only turns the pool on/off and sets its shared rate limit.
type ReverseConfig struct {
	Enabled bool
	RPS     int
}

// OAuth2AdapterConfig configures either of the OAuth2 client-credentials
// adapters (gds-sdk, official-api); TokenTTLCap is 0 for "trust expires_in".
type OAuth2AdapterConfig struct {
	Enabled      bool
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RPS          int
	TokenTTLCap  time.Duration
}

// BrowserConfig configures the browser-automation pool.
type BrowserConfig struct {
	Enabled   bool
	SearchURL string
	PoolSize  int
}

// Load reads Config from the environment via env()/atoi(); no config
// library (viper, envconfig) is introduced.
func Load() Config {
	cfg := Config{
		AppEnv:      env("APP_ENV", "dev"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),

		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/flightmesh?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		OpenSearchAddrs: split(env("OPENSEARCH_ADDRS", "")),
		OpenSearchUser:  env("OPENSEARCH_USERNAME", ""),
		OpenSearchPass:  env("OPENSEARCH_PASSWORD", ""),

		RefreshWorkers:  atoi("REFRESH_WORKERS", 8),
		RefreshInterval: duration("REFRESH_INTERVAL", 5*time.Minute),

		ExecutorInteractiveDeadline: duration("EXECUTOR_INTERACTIVE_DEADLINE", 4*time.Second),
		ExecutorBackgroundDeadline:  duration("EXECUTOR_BACKGROUND_DEADLINE", 60*time.Second),

		CacheTopFreshTTL:      duration("CACHE_TOP_FRESH_TTL", 5*time.Minute),
		CacheTopStaleTTL:      duration("CACHE_TOP_STALE_TTL", 15*time.Minute),
		CacheMediumFreshTTL:   duration("CACHE_MEDIUM_FRESH_TTL", 30*time.Minute),
		CacheMediumStaleTTL:   duration("CACHE_MEDIUM_STALE_TTL", 6*time.Hour),
		CacheLongTailFreshTTL: duration("CACHE_LONGTAIL_FRESH_TTL", 6*time.Hour),
		CacheLongTailStaleTTL: duration("CACHE_LONGTAIL_STALE_TTL", 24*time.Hour),

		BinaryMeta: BinaryMetaConfig{
			Enabled: boolEnv("ADAPTERS_BINARYMETA_ENABLED", true),
			BaseURL: env("ADAPTERS_BINARYMETA_BASE_URL", ""),
			APIKey:  env("ADAPTERS_BINARYMETA_API_KEY", ""),
			RPS:     atoi("ADAPTERS_BINARYMETA_RPS", 5),
		},
		Aggregator: AggregatorConfig{
			Enabled: boolEnv("ADAPTERS_AGGREGATOR_ENABLED", true),
			BaseURL: env("ADAPTERS_AGGREGATOR_BASE_URL", ""),
			APIKey:  env("ADAPTERS_AGGREGATOR_API_KEY", ""),
			RPS:     atoi("ADAPTERS_AGGREGATOR_RPS", 5),
		},
		Reverse: ReverseConfig{
			Enabled: boolEnv("ADAPTERS_REVERSE_ENABLED", true),
			RPS:     atoi("ADAPTERS_REVERSE_RPS", 2),
		},
		GDS: OAuth2AdapterConfig{
			Enabled:      boolEnv("ADAPTERS_GDS_ENABLED", true),
			BaseURL:      env("ADAPTERS_GDS_BASE_URL", ""),
			TokenURL:     env("ADAPTERS_GDS_TOKEN_URL", ""),
			ClientID:     env("ADAPTERS_GDS_CLIENT_ID", ""),
			ClientSecret: env("ADAPTERS_GDS_CLIENT_SECRET", ""),
			RPS:          atoi("ADAPTERS_GDS_RPS", 5),
		},
		OfficialAPI: OAuth2AdapterConfig{
			Enabled:      boolEnv("ADAPTERS_OFFICIALAPI_ENABLED", true),
			BaseURL:      env("ADAPTERS_OFFICIALAPI_BASE_URL", ""),
			TokenURL:     env("ADAPTERS_OFFICIALAPI_TOKEN_URL", ""),
			ClientID:     env("ADAPTERS_OFFICIALAPI_CLIENT_ID", ""),
			ClientSecret: env("ADAPTERS_OFFICIALAPI_CLIENT_SECRET", ""),
			RPS:          atoi("ADAPTERS_OFFICIALAPI_RPS", 5),
			TokenTTLCap:  36 * time.Hour,
		},
		Browser: BrowserConfig{
			Enabled:   boolEnv("ADAPTERS_BROWSER_ENABLED", false),
			SearchURL: env("ADAPTERS_BROWSER_SEARCH_URL", ""),
			PoolSize:  atoi("ADAPTERS_BROWSER_POOL_SIZE", 2),
		},
	}

	cfg.Tenants = loadTenants()

	if cfg.MySQLDSN == "" {
		log.Warn().Msg("MYSQL_DSN is empty, price history writes will fail")
	}
	if cfg.GDS.Enabled && cfg.GDS.ClientSecret == "" {
		log.Warn().Msg("ADAPTERS_GDS_CLIENT_SECRET is empty")
	}
	if cfg.OfficialAPI.Enabled && cfg.OfficialAPI.ClientSecret == "" {
		log.Warn().Msg("ADAPTERS_OFFICIALAPI_CLIENT_SECRET is empty")
	}

	return cfg
}

// loadTenants reads a fixed number of shared-tenant-key slots
// (ADAPTERS_TENANT_1_ID, ADAPTERS_TENANT_1_BASE_URL, ...) rather than a
// single delimited list: individually named env vars read better than a
// packed list wherever the count is small and known (8 airlines share
// the shared-tenant-key endpoint).
func loadTenants() []TenantConfig {
	const maxTenants = 8
	var tenants []TenantConfig
	for i := 1; i <= maxTenants; i++ {
		prefix := "ADAPTERS_TENANT_" + strconv.Itoa(i) + "_"
		id := env(prefix+"ID", "")
		if id == "" {
			continue
		}
		tenants = append(tenants, TenantConfig{
			TenantID: id,
			BaseURL:  env(prefix+"BASE_URL", ""),
			APIKey:   env(prefix+"API_KEY", ""),
			RPS:      atoi(prefix+"RPS", 5),
		})
	}
	return tenants
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolEnv(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func split(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
