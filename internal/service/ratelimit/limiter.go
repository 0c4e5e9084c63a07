package ratelimit

import (
    "sync"
    "time"

    "golang.org/x/time/rate"
)

type bucket struct {
    lim  *rate.Limiter
    seen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
    mu    sync.Mutex
    m     map[string]*bucket
    every rate.Limit
    burst int
    now   func() time.Time
}

// New allows perSec events per key on average, with bursts up to burst.
func New(perSec float64, burst int) *Limiter {
    if burst < 1 {
        burst = 1
    }
    return &Limiter{m: make(map[string]*bucket), every: rate.Limit(perSec), burst: burst, now: time.Now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
    now := l.now()
    l.mu.Lock()
    b, ok := l.m[key]
    if !ok {
        b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
        l.m[key] = b
    }
    b.seen = now
    l.mu.Unlock()
    return b.lim.AllowN(now, 1)
}

// Sweep forgets keys idle for longer than idle and returns how many were dropped.
func (l *Limiter) Sweep(idle time.Duration) int {
    cutoff := l.now().Add(-idle)
    l.mu.Lock()
    defer l.mu.Unlock()
    n := 0
    for k, b := range l.m {
        if b.seen.Before(cutoff) {
            delete(l.m, k)
            n++
        }
    }
    return n
}
