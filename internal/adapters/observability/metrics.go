package observability

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "flightmesh", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flightmesh", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "flightmesh", Name: "external_requests_total", Help: "Outbound adapter requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flightmesh", Name: "external_request_duration_seconds",
			Help:    "Outbound adapter request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "flightmesh", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)

	// AdapterInvocations counts every adapter call by terminal outcome
	// (success|failure|circuit_open), keyed by source.
	AdapterInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "flightmesh", Name: "adapter_invocations_total", Help: "Adapter invocations by outcome."},
		[]string{"source", "outcome"},
	)
	// CircuitState is a gauge of 0=CLOSED,1=HALF_OPEN,2=OPEN per source,
	// set through ObserveCircuitState; the breaker does not call it.
	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "flightmesh", Name: "circuit_state", Help: "Circuit breaker state per source (0=closed,1=half_open,2=open)."},
		[]string{"source"},
	)
	RateLimitWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flightmesh", Name: "rate_limit_wait_seconds",
			Help:    "Time spent waiting on a per-source token bucket before a call.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	FanoutFirstResponse = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "flightmesh", Name: "fanout_first_response_seconds",
			Help:    "Time from fan-out start to the interactive grace window closing.",
			Buckets: prometheus.DefBuckets,
		},
	)
	MergeDedupRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "flightmesh", Name: "merge_dedup_ratio", Help: "Fraction of raw offers collapsed by the merger on the last query."},
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		AdapterInvocations, CircuitState, RateLimitWait, FanoutFirstResponse, MergeDedupRatio,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// ObserveAdapterInvocation records the terminal outcome of one adapter call.
func ObserveAdapterInvocation(source, outcome string) {
	AdapterInvocations.WithLabelValues(source, outcome).Inc()
}

// ObserveCircuitState records a breaker transition as a gauge sample.
func ObserveCircuitState(source string, state int) {
	CircuitState.WithLabelValues(source).Set(float64(state))
}

// ObserveRateLimitWait records how long a call waited on its token bucket.
func ObserveRateLimitWait(source string, d time.Duration) {
	RateLimitWait.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveFanoutFirstResponse records the interactive grace window's length.
func ObserveFanoutFirstResponse(d time.Duration) {
	FanoutFirstResponse.Observe(d.Seconds())
}

// ObserveMergeDedupRatio records the merger's collapse ratio for a query.
func ObserveMergeDedupRatio(ratio float64) {
	MergeDedupRatio.Set(ratio)
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
