package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Throttle hands out one token bucket per key. Unlike Tracker it smooths
// bursts rather than enforcing a hard count per window: a full bucket
// allows burst events at once and then one event every 1/r.
type Throttle struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	entries *gocache.Cache
}

// NewThrottle allows perMinute events per key on average with the given
// burst. Idle keys are evicted after idleTTL and start with a full bucket.
func NewThrottle(perMinute, burst int, idleTTL time.Duration) *Throttle {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Throttle{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		idleTTL: idleTTL,
		entries: gocache.New(idleTTL, idleTTL),
	}
}

// Allow takes one token from key's bucket at now.
func (t *Throttle) Allow(key string, now time.Time) bool {
	return t.limiter(key).AllowN(now, 1)
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.entries.Get(key); ok {
		l := v.(*rate.Limiter)
		t.entries.Set(key, l, t.idleTTL)
		return l
	}
	l := rate.NewLimiter(t.limit, t.burst)
	t.entries.Set(key, l, t.idleTTL)
	return l
}
