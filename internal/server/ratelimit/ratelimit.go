// Package ratelimit provides per-client token bucket limiting shared by
// the HTTP and RESP transports.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/tokstash-go/pkg/cmap"
)

// DefaultIdleTTL is how long an unused client limiter is kept.
const DefaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// Registry hands out one limiter per client key (usually the remote IP).
type Registry struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	entries *cmap.Map[*entry]
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTTL sets how long idle limiters survive a Sweep.
func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) {
		r.idleTTL = d
	}
}

// WithClock overrides the clock used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry allowing rps requests per second per key with
// the given burst.
func New(rps float64, burst int, opts ...Option) *Registry {
	r := &Registry{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		entries: cmap.New[*entry](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow reports whether one more request from key fits its budget.
func (r *Registry) Allow(key string) bool {
	now := r.now()
	// lastSeen is stamped under the shard lock that evict also holds.
	e := r.entries.Update(key, func(e *entry, exists bool) *entry {
		if !exists {
			e = &entry{limiter: rate.NewLimiter(r.limit, r.burst)}
		}
		e.lastSeen.Store(now.UnixNano())
		return e
	})
	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (r *Registry) Len() int {
	return r.entries.Count()
}

// Sweep drops limiters idle for longer than the idle TTL and returns how
// many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL).UnixNano()
	return r.evict(r.idleKeys(cutoff), cutoff)
}

func (r *Registry) idleKeys(cutoff int64) []string {
	var keys []string
	r.entries.Range(func(key string, e *entry) bool {
		if e.lastSeen.Load() < cutoff {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}

// evict removes the keys that are still idle. A key used since idleKeys
// ran is kept.
func (r *Registry) evict(keys []string, cutoff int64) int {
	removed := 0
	for _, key := range keys {
		if r.entries.DeleteIf(key, func(e *entry) bool { return e.lastSeen.Load() < cutoff }) {
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
