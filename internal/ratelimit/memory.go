package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a per-process fixed-window counter per key. Windows line up
// with the ones RedisLimiter uses.
type MemoryLimiter struct {
	mu        sync.Mutex
	counters  map[string]*counter
	max       int
	window    time.Duration
	lastSweep int64
	now       func() time.Time
}

type counter struct {
	slot  int64
	count int
}

// NewMemoryLimiter allows max requests per key in each window
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*counter),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, resetIn := windowSlot(l.now(), l.window)
	l.sweep(slot)

	c, ok := l.counters[key]
	if !ok || c.slot != slot {
		c = &counter{slot: slot}
		l.counters[key] = c
	}
	c.count++

	return counted(c.count, l.max, resetIn), nil
}

// sweep drops counters of past windows, at most once per window
func (l *MemoryLimiter) sweep(slot int64) {
	if slot == l.lastSweep {
		return
	}
	l.lastSweep = slot
	for key, c := range l.counters {
		if c.slot < slot {
			delete(l.counters, key)
		}
	}
}

// Len returns the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
