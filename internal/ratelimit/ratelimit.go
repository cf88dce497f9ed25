// Package ratelimit enforces a per-subject token bucket backing the
// RateLimited/429 error kind (spec.md §7), grounded on the teacher's
// mutex-guarded map-of-state pattern (persistence.JSONStore, hub.go's
// client registry).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per subject key, created lazily and
// evicted when idle past idleTTL.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type bucket struct {
	limiter    *rate.Limiter
	lastUsedAt time.Time
}

// New creates a Limiter allowing rps requests per second per subject, with
// burst headroom, evicting buckets unused for idleTTL.
func New(rps float64, burst int, idleTTL time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
	}
}

// Allow reports whether subject may proceed now, consuming a token if so.
func (l *Limiter) Allow(subject string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[subject]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[subject] = b
	}
	b.lastUsedAt = time.Now()
	return b.limiter.Allow()
}

// Sweep evicts buckets idle past idleTTL; run periodically from a ticker.
func (l *Limiter) Sweep() {
	cutoff := time.Now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.lastUsedAt.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}
