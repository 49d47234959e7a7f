// Package ratelimit tracks per-key request budgets.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Tracker allows at most a fixed number of events per key within any
// window. Keys that have not been used for the idle TTL are evicted.
type Tracker struct {
	mu      sync.Mutex
	events  int
	window  time.Duration
	idleTTL time.Duration
	entries *gocache.Cache
}

// sendLog holds the times of the events still inside the window, oldest
// first.
type sendLog struct {
	mu    sync.Mutex
	times []time.Time
}

// NewTracker allows events per window for each key. A non-positive idleTTL
// defaults to twice the window and is never shorter than the window.
func NewTracker(events int, window, idleTTL time.Duration) *Tracker {
	if events <= 0 {
		events = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 2 * window
	}
	if idleTTL < window {
		idleTTL = window
	}
	return &Tracker{
		events:  events,
		window:  window,
		idleTTL: idleTTL,
		entries: gocache.New(idleTTL, idleTTL),
	}
}

// Allow records one event for key at now unless the key already has the
// full budget of events in (now-window, now].
func (t *Tracker) Allow(key string, now time.Time) bool {
	l := t.log(key)
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-t.window)
	i := 0
	for i < len(l.times) && !l.times[i].After(cutoff) {
		i++
	}
	l.times = l.times[i:]

	if len(l.times) >= t.events {
		return false
	}
	l.times = append(l.times, now)
	return true
}

// Len returns the number of keys currently tracked.
func (t *Tracker) Len() int {
	return t.entries.ItemCount()
}

// Evict drops expired keys immediately instead of waiting for the janitor.
func (t *Tracker) Evict() {
	t.entries.DeleteExpired()
}

func (t *Tracker) log(key string) *sendLog {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.entries.Get(key); ok {
		l := v.(*sendLog)
		t.entries.Set(key, l, t.idleTTL)
		return l
	}
	l := &sendLog{}
	t.entries.Set(key, l, t.idleTTL)
	return l
}
