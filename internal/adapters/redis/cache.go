package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flightmesh/flightmesh/internal/adapters/observability"
	"github.com/flightmesh/flightmesh/internal/domain"
)

// lockSuffix namespaces the SETNX-based exclusive write lock away from the
// entry's own key so Get/Set on the entry never collide with the lock.
const lockSuffix = ":lock"

// Cache stores domain.CacheEntry values and implements domain.Cache: a
// Get/Set/Del trio over the stale-while-revalidate entry shape, plus a
// per-key exclusive write lock for single-writer refresh.
type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (r *Cache) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		observability.ObserveCache("redis", "miss")
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	observability.ObserveCache("redis", "hit")
	var entry domain.CacheEntry
	if err := json.Unmarshal(v, &entry); err != nil {
		return domain.CacheEntry{}, false, err
	}
	return entry, true, nil
}

// Set persists entry with a TTL through StaleUntil so a key outlives its
// freshness window but still expires once fully stale. An entry whose
// StaleUntil has already passed is kept for one minute.
func (r *Cache) Set(ctx context.Context, key string, entry domain.CacheEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	ttl := time.Until(entry.StaleUntil)
	if ttl <= 0 {
		ttl = time.Minute
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, key, b, ttl).Err()
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, key).Err()
}

// TryLock acquires the per-key exclusive write lock via SETNX, enforcing
// a single writer for background revalidation.
func (r *Cache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.c.SetNX(ctx, key+lockSuffix, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	event := "lock_contended"
	if ok {
		event = "lock_acquired"
	}
	observability.ObserveCache("redis", event)
	return ok, nil
}

func (r *Cache) Unlock(ctx context.Context, key string) error {
	return r.c.Del(ctx, key+lockSuffix).Err()
}
