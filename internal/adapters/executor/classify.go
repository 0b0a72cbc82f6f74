package executor

import (
	"context"
	"errors"
	"net/http"

	"github.com/flightmesh/flightmesh/internal/domain"
)

// StatusError is the common error shape every adapter wraps an upstream
// HTTP response in: one typed error (instead of per-status sentinels) so
// ClassifyStatus can be shared across all seven adapter variants.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode)
}

// BlockedError marks a response recognized as a bot-challenge wall
// (captcha page, JS challenge) rather than a normal HTTP error.
type BlockedError struct{ Reason string }

func (e *BlockedError) Error() string { return "blocked: " + e.Reason }

// ParseError marks a response that decoded but didn't contain usable
// data. Recoverable means retrying/backing off might help (e.g. an empty
// itinerary list during a known upstream maintenance window); non-
// recoverable means the wire shape itself has changed and needs a human.
type ParseError struct {
	Recoverable bool
	Err         error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ClassifyStatus maps a shared error taxonomy to domain.FailureKind. Each
// adapter's ClassifyFailure method should delegate here after unwrapping
// its own sentinel errors into these shared types.
func ClassifyStatus(ctx context.Context, err error) domain.FailureKind {
	if err == nil {
		return domain.FailureNone
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureCancelled
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.FailureRateLimited
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return domain.FailureAuthExpired
		case statusErr.StatusCode >= 500:
			return domain.FailureTransientNetwork
		case statusErr.StatusCode == http.StatusNotFound:
			return domain.FailureUpstreamEmpty
		}
	}

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return domain.FailureBotChallenge
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if parseErr.Recoverable {
			return domain.FailureParseErrorRecoverable
		}
		return domain.FailureParseErrorUnusable
	}

	return domain.FailureTransientNetwork
}

// Retryable reports whether the executor should retry the call, as opposed
// to surfacing the failure immediately. RATE_LIMITED is deliberately not
// retryable here: a 429 means the upstream already asked for backoff, and
// retrying into it just burns the adapter's own rate budget -- the
// router's next fan-out picks a healthier source instead.
func Retryable(kind domain.FailureKind) bool {
	switch kind {
	case domain.FailureTransientNetwork, domain.FailureParseErrorRecoverable:
		return true
	default:
		return false
	}
}
