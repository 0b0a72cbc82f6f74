package executor

import (
	"testing"
	"time"

	"github.com/flightmesh/flightmesh/internal/domain"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{TripThreshold: 3, OpenDuration: time.Minute, CloseThreshold: 1})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	}
	if b.Snapshot("kiwi").State != domain.CircuitClosed {
		t.Fatal("breaker should still be closed below threshold")
	}
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	if b.Snapshot("kiwi").State != domain.CircuitOpen {
		t.Fatal("breaker should trip open at threshold")
	}
	if b.AllowAt("kiwi", now) {
		t.Fatal("open breaker should not allow calls before OpenDuration elapses")
	}
}

func TestBreaker_HalfOpenProbeThenClose(t *testing.T) {
	b := NewBreaker(BreakerConfig{TripThreshold: 1, OpenDuration: time.Second, CloseThreshold: 2})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	if b.Snapshot("kiwi").State != domain.CircuitOpen {
		t.Fatal("expected OPEN after single failure at threshold 1")
	}

	probeTime := now.Add(2 * time.Second)
	if !b.AllowAt("kiwi", probeTime) {
		t.Fatal("expected a probe to be allowed after OpenDuration elapses")
	}
	if b.Snapshot("kiwi").State != domain.CircuitHalfOpen {
		t.Fatal("expected HALF_OPEN after the probe window opens")
	}

	b.RecordSuccessAt("kiwi", probeTime)
	if b.Snapshot("kiwi").State != domain.CircuitHalfOpen {
		t.Fatal("expected to still need a second success before closing")
	}
	b.RecordSuccessAt("kiwi", probeTime)
	if b.Snapshot("kiwi").State != domain.CircuitClosed {
		t.Fatal("expected CLOSED after CloseThreshold consecutive successes")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{TripThreshold: 1, OpenDuration: time.Second, CloseThreshold: 2})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	probeTime := now.Add(2 * time.Second)
	b.AllowAt("kiwi", probeTime)
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, probeTime)
	h := b.Snapshot("kiwi")
	if h.State != domain.CircuitOpen {
		t.Fatalf("expected a half-open probe failure to re-open, got %v", h.State)
	}
	if h.OpenedAt != probeTime {
		t.Fatal("expected OpenedAt to reset to the probe failure time")
	}
}

func TestBreaker_CancelledDoesNotCountTowardTrip(t *testing.T) {
	b := NewBreaker(BreakerConfig{TripThreshold: 2, OpenDuration: time.Minute, CloseThreshold: 1})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.RecordFailureAt("kiwi", domain.FailureCancelled, now)
	b.RecordFailureAt("kiwi", domain.FailureUpstreamEmpty, now)
	b.RecordFailureAt("kiwi", domain.FailureCancelled, now)
	if b.Snapshot("kiwi").State != domain.CircuitClosed {
		t.Fatal("CANCELLED/UPSTREAM_EMPTY failures must never trip the breaker")
	}
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	if b.Snapshot("kiwi").State != domain.CircuitOpen {
		t.Fatal("expected genuine upstream failures to still trip the breaker at threshold")
	}
}

func TestBreaker_SuccessRateWindowExcludesCancelled(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.RecordFailureAt("kiwi", domain.FailureCancelled, now)
	b.RecordFailureAt("kiwi", domain.FailureUpstreamEmpty, now)
	if got := b.Snapshot("kiwi").WindowRequests; got != 0 {
		t.Fatalf("expected CANCELLED/UPSTREAM_EMPTY to be excluded from the rolling window, got %d requests", got)
	}
	b.RecordSuccessAt("kiwi", now)
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	h := b.Snapshot("kiwi")
	if h.WindowRequests != 2 || h.WindowSuccesses != 1 {
		t.Fatalf("expected 2 tracked requests/1 success, got %+v", h)
	}
	if rate := h.SuccessRate(); rate != 0.5 {
		t.Fatalf("expected 0.5 success rate, got %v", rate)
	}
}

func TestBreaker_SuccessRateWindowRollsOverAfterAnHour(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	later := now.Add(2 * time.Hour)
	b.RecordSuccessAt("kiwi", later)
	h := b.Snapshot("kiwi")
	if h.WindowRequests != 1 || h.WindowSuccesses != 1 {
		t.Fatalf("expected the window to have reset after rolling over, got %+v", h)
	}
}

func TestBreaker_IndependentPerSource(t *testing.T) {
	b := NewBreaker(BreakerConfig{TripThreshold: 1, OpenDuration: time.Minute, CloseThreshold: 1})
	now := time.Now()
	b.RecordFailureAt("kiwi", domain.FailureTransientNetwork, now)
	if b.Snapshot("amadeus").State != domain.CircuitClosed {
		t.Fatal("breakers must be independent per source")
	}
}
