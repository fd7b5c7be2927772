package ratelimit

import (
    "sync"
    "time"

    "golang.org/x/time/rate"
)

const (
    sweepThreshold = 1024
    idleTTL        = 10 * time.Minute
)

type entry struct {
    lim  *rate.Limiter
    seen time.Time
}

// Limiter hands out one token bucket per key (e.g. a client address).
type Limiter struct {
    mu    sync.Mutex
    m     map[string]*entry
    limit rate.Limit
    burst int
    now   func() time.Time
}

// New allows perMinute events per key with the given burst. perMinute <= 0
// disables limiting.
func New(perMinute float64, burst int) *Limiter {
    limit := rate.Inf
    if perMinute > 0 {
        limit = rate.Limit(perMinute / 60)
    }
    if burst < 1 {
        burst = 1
    }
    return &Limiter{m: make(map[string]*entry), limit: limit, burst: burst, now: time.Now}
}

// Allow reports whether one event for key may happen now.
func (l *Limiter) Allow(key string) bool {
    if l.limit == rate.Inf {
        return true
    }
    now := l.now()
    l.mu.Lock()
    defer l.mu.Unlock()

    e, ok := l.m[key]
    if !ok {
        if len(l.m) >= sweepThreshold {
            l.sweep(now)
        }
        e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
        l.m[key] = e
    }
    e.seen = now
    return e.lim.AllowN(now, 1)
}

// sweep drops keys idle for longer than idleTTL. Caller holds mu.
func (l *Limiter) sweep(now time.Time) {
    for k, e := range l.m {
        if now.Sub(e.seen) > idleTTL {
            delete(l.m, k)
        }
    }
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return len(l.m)
}
