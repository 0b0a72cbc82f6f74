package domain

import (
	"context"
	"time"
)

// Adapter is the contract every source variant under
// internal/adapters/sources implements.
type Adapter interface {
	// Search streams RawOffer values as they arrive and closes both
	// channels when the adapter is done or ctx/deadline expires.
	Search(ctx context.Context, q Query, deadline time.Time) (<-chan RawOffer, <-chan error)
	HealthCheck(ctx context.Context) error
	ClassifyFailure(err error) FailureKind
	SourceID() string
}

// Cache is the stale-while-revalidate store the app layer depends on.
type Cache interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry) error
	Del(ctx context.Context, key string) error
	// TryLock acquires the per-key exclusive write lock used to coordinate
	// a single revalidation writer. ok is false if another writer already
	// holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)
	Unlock(ctx context.Context, key string) error
}

// HistoryStore persists price observations and serves prediction-data reads.
type HistoryStore interface {
	RecordObservation(ctx context.Context, row PriceHistoryRow) error
	PriceHistory(ctx context.Context, origin, dest string, from, to time.Time) ([]PriceHistoryRow, error)
}

// HealthRegistry is the executor's circuit-breaker bookkeeping surface,
// read by the Router and written only by the executor (single writer).
type HealthRegistry interface {
	Snapshot(sourceID string) SourceHealth
	All() []SourceHealth
	RecordSuccess(sourceID string)
	RecordFailure(sourceID string, kind FailureKind)
}

// Normalizer turns one adapter's RawOffer payload into zero or more
// canonical Offers. Implementations live in internal/adapters/normalize.
type Normalizer func(raw RawOffer, q Query) ([]Offer, error)
