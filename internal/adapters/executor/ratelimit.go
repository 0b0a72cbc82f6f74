package executor

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiters is a registry of one token bucket per adapter source id: a map
// of named limiters with a default bucket for unregistered sources.
type Limiters struct {
	mu       sync.RWMutex
	buckets  map[string]*rate.Limiter
	defaultRPS   int
	defaultBurst int
}

func NewLimiters(defaultRPS, defaultBurst int) *Limiters {
	if defaultRPS <= 0 {
		defaultRPS = 5
	}
	if defaultBurst <= 0 {
		defaultBurst = defaultRPS
	}
	return &Limiters{
		buckets:      make(map[string]*rate.Limiter),
		defaultRPS:   defaultRPS,
		defaultBurst: defaultBurst,
	}
}

// Configure registers (or replaces) the bucket for a specific source id.
func (l *Limiters) Configure(sourceID string, rps, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[sourceID] = rate.NewLimiter(rate.Limit(rps), burst)
}

// For returns the limiter for sourceID, lazily creating one from the
// registry defaults if it hasn't been configured.
func (l *Limiters) For(sourceID string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.buckets[sourceID]
	l.mu.RUnlock()
	if ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.buckets[sourceID]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.defaultRPS), l.defaultBurst)
	l.buckets[sourceID] = lim
	return lim
}
