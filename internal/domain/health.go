package domain

import "time"

// FailureKind classifies an adapter error for circuit-breaker and
// anti-bot-escalation purposes.
type FailureKind string

const (
	FailureNone                  FailureKind = ""
	FailureTransientNetwork      FailureKind = "TRANSIENT_NETWORK"
	FailureRateLimited           FailureKind = "RATE_LIMITED"
	FailureBotChallenge          FailureKind = "BOT_CHALLENGE"
	FailureAuthExpired           FailureKind = "AUTH_EXPIRED"
	FailureParseErrorRecoverable FailureKind = "PARSE_ERROR_RECOVERABLE"
	FailureParseErrorUnusable    FailureKind = "PARSE_ERROR_UNUSABLE"
	FailureUpstreamEmpty         FailureKind = "UPSTREAM_EMPTY"
	FailureCancelled             FailureKind = "CANCELLED"
)

// CircuitState is the three-state circuit-breaker state machine.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// SourceHealth is the per-adapter rolling health record.
type SourceHealth struct {
	SourceID         string
	State            CircuitState
	ConsecutiveFails int
	LastFailure      FailureKind
	LastSuccessAt    time.Time
	LastFailureAt    time.Time
	OpenedAt         time.Time
	EscalationLevel  int // index into the anti-bot strategy ladder

	// WindowStartedAt/WindowRequests/WindowSuccesses track the rolling
	// last-hour success rate the router's demotion rule reads; the window
	// rolls over (resets) once it's more than an hour old rather than
	// sliding continuously. CANCELLED and UPSTREAM_EMPTY outcomes are
	// never counted into it.
	WindowStartedAt time.Time
	WindowRequests  int
	WindowSuccesses int
}

// Stale reports whether the health record hasn't seen a success recently
// enough to be trusted without a probe.
func (h SourceHealth) Stale(maxAge time.Duration, now time.Time) bool {
	if h.LastSuccessAt.IsZero() {
		return true
	}
	return now.Sub(h.LastSuccessAt) > maxAge
}

// SuccessRate reports the rolling last-hour success rate, or 1.0 (assume
// healthy) when too few requests have landed in the window to judge.
func (h SourceHealth) SuccessRate() float64 {
	if h.WindowRequests == 0 {
		return 1
	}
	return float64(h.WindowSuccesses) / float64(h.WindowRequests)
}

// Snapshot returns a copy safe to read without holding the owning
// registry's lock.
func (h SourceHealth) Snapshot() SourceHealth {
	return h
}
