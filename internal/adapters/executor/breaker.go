package executor

import (
	"sync"
	"time"

	"github.com/flightmesh/flightmesh/internal/domain"
)

// BreakerConfig holds the N/W/C circuit-breaker parameters: trip after N
// consecutive failures, stay OPEN for W before probing, close again after
// C consecutive successes in HALF_OPEN.
type BreakerConfig struct {
	TripThreshold   int
	OpenDuration    time.Duration
	CloseThreshold  int
}

// DefaultBreakerConfig is a conservative starting point for production use.
var DefaultBreakerConfig = BreakerConfig{
	TripThreshold:  5,
	OpenDuration:   30 * time.Second,
	CloseThreshold: 2,
}

type breakerEntry struct {
	mu      sync.Mutex
	health  domain.SourceHealth
	cfg     BreakerConfig
	succInHalfOpen int
}

// Breaker is the per-adapter circuit-breaker registry. Each entry is
// guarded by its own mutex so breakers for different sources never
// contend with each other.
type Breaker struct {
	mu      sync.RWMutex
	entries map[string]*breakerEntry
	cfg     BreakerConfig
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{entries: make(map[string]*breakerEntry), cfg: cfg}
}

func (b *Breaker) entry(sourceID string) *breakerEntry {
	b.mu.RLock()
	e, ok := b.entries[sourceID]
	b.mu.RUnlock()
	if ok {
		return e
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[sourceID]; ok {
		return e
	}
	e = &breakerEntry{
		health: domain.SourceHealth{SourceID: sourceID, State: domain.CircuitClosed},
		cfg:    b.cfg,
	}
	b.entries[sourceID] = e
	return e
}

// Allow reports whether a call to sourceID should proceed right now.
func (b *Breaker) Allow(sourceID string) bool {
	return b.AllowAt(sourceID, time.Now())
}

// AllowAt is Allow with an injectable clock, for deterministic tests.
// Always true when CLOSED or HALF_OPEN, true at most once per
// OpenDuration window when OPEN (the probe), false otherwise.
func (b *Breaker) AllowAt(sourceID string, now time.Time) bool {
	e := b.entry(sourceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.health.State {
	case domain.CircuitClosed, domain.CircuitHalfOpen:
		return true
	case domain.CircuitOpen:
		if now.Sub(e.health.OpenedAt) >= e.cfg.OpenDuration {
			e.health.State = domain.CircuitHalfOpen
			e.succInHalfOpen = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess implements domain.HealthRegistry.
func (b *Breaker) RecordSuccess(sourceID string) {
	b.RecordSuccessAt(sourceID, time.Now())
}

// RecordSuccessAt is RecordSuccess with an injectable clock. Transitions
// HALF_OPEN -> CLOSED after CloseThreshold consecutive successes, and
// always resets the failure streak.
func (b *Breaker) RecordSuccessAt(sourceID string, now time.Time) {
	e := b.entry(sourceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.health.ConsecutiveFails = 0
	e.health.LastSuccessAt = now
	rollWindow(&e.health, now)
	e.health.WindowRequests++
	e.health.WindowSuccesses++
	switch e.health.State {
	case domain.CircuitHalfOpen:
		e.succInHalfOpen++
		if e.succInHalfOpen >= e.cfg.CloseThreshold {
			e.health.State = domain.CircuitClosed
			e.succInHalfOpen = 0
		}
	case domain.CircuitOpen:
		// a probe succeeded without Allow() having been called first
		// (e.g. a health check) -- treat it the same as a half-open probe.
		e.health.State = domain.CircuitHalfOpen
		e.succInHalfOpen = 1
	}
}

// RecordFailure implements domain.HealthRegistry.
func (b *Breaker) RecordFailure(sourceID string, kind domain.FailureKind) {
	b.RecordFailureAt(sourceID, kind, time.Now())
}

// RecordFailureAt is RecordFailure with an injectable clock. Trips
// CLOSED -> OPEN after TripThreshold consecutive failures, and
// immediately re-opens on any HALF_OPEN probe failure. CANCELLED (a
// limiter-wait context cancellation, not an upstream failure) and
// UPSTREAM_EMPTY (a successful-but-empty response) never count toward the
// trip threshold or the rolling success-rate window -- only genuine
// upstream failures do.
func (b *Breaker) RecordFailureAt(sourceID string, kind domain.FailureKind, now time.Time) {
	e := b.entry(sourceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.health.LastFailure = kind
	e.health.LastFailureAt = now

	if kind == domain.FailureCancelled || kind == domain.FailureUpstreamEmpty {
		return
	}

	rollWindow(&e.health, now)
	e.health.WindowRequests++
	e.health.ConsecutiveFails++

	switch e.health.State {
	case domain.CircuitHalfOpen:
		e.health.State = domain.CircuitOpen
		e.health.OpenedAt = now
		e.succInHalfOpen = 0
	case domain.CircuitClosed:
		if e.health.ConsecutiveFails >= e.cfg.TripThreshold {
			e.health.State = domain.CircuitOpen
			e.health.OpenedAt = now
		}
	}
}

// rollWindow resets the rolling success-rate window once it's more than an
// hour old. Must be called with the entry's lock held.
func rollWindow(h *domain.SourceHealth, now time.Time) {
	if h.WindowStartedAt.IsZero() || now.Sub(h.WindowStartedAt) >= time.Hour {
		h.WindowStartedAt = now
		h.WindowRequests = 0
		h.WindowSuccesses = 0
	}
}

// SetEscalationLevel records the anti-bot ladder's current rung against
// this source's health snapshot, so Router (or an operator dashboard) can
// observe escalation state alongside circuit state without reaching into
// the executor's ladder registry directly.
func (b *Breaker) SetEscalationLevel(sourceID string, level int) {
	e := b.entry(sourceID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.EscalationLevel = level
}

// Snapshot implements domain.HealthRegistry.
func (b *Breaker) Snapshot(sourceID string) domain.SourceHealth {
	e := b.entry(sourceID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health.Snapshot()
}

// All returns a snapshot of every registered adapter's health.
func (b *Breaker) All() []domain.SourceHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.SourceHealth, 0, len(b.entries))
	for _, e := range b.entries {
		e.mu.Lock()
		out = append(out, e.health.Snapshot())
		e.mu.Unlock()
	}
	return out
}
