package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "github.com/flightmesh/flightmesh/internal/adapters/redis"
	"github.com/flightmesh/flightmesh/internal/domain"
)

func newTestCache(t *testing.T) *redisad.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return redisad.New(mr.Addr(), "", 0)
}

func TestCache_SetGetRoundtrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	entry := domain.CacheEntry{
		Result:     domain.SearchResult{Query: domain.Query{Origin: "JFK", Destination: "LHR"}},
		StoredAt:   time.Now(),
		FreshUntil: time.Now().Add(time.Minute),
		StaleUntil: time.Now().Add(10 * time.Minute),
	}
	if err := c.Set(ctx, "q1", entry); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, "q1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Result.Query.Origin != "JFK" {
		t.Fatalf("unexpected roundtrip value: %+v", got)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestCache_TryLockIsExclusive(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok1, err := c.TryLock(ctx, "q1", time.Minute)
	if err != nil || !ok1 {
		t.Fatalf("expected first lock to succeed, got ok=%v err=%v", ok1, err)
	}
	ok2, err := c.TryLock(ctx, "q1", time.Minute)
	if err != nil || ok2 {
		t.Fatalf("expected second lock to be contended, got ok=%v err=%v", ok2, err)
	}

	if err := c.Unlock(ctx, "q1"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	ok3, err := c.TryLock(ctx, "q1", time.Minute)
	if err != nil || !ok3 {
		t.Fatalf("expected lock to be re-acquirable after Unlock, got ok=%v err=%v", ok3, err)
	}
}

func TestCache_Del(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	entry := domain.CacheEntry{StaleUntil: time.Now().Add(time.Minute)}
	_ = c.Set(ctx, "q1", entry)
	if err := c.Del(ctx, "q1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "q1"); ok {
		t.Fatal("expected key to be gone after Del")
	}
}
