// Package ratelimit counts requests per client and decides whether one more is allowed.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter admits or rejects one request for key
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// windowSlot returns the fixed window now falls in and the time left in it.
// Windows are aligned to the Unix epoch so every limiter agrees on them.
func windowSlot(now time.Time, window time.Duration) (int64, time.Duration) {
	slot := now.UnixNano() / int64(window)
	return slot, time.Unix(0, (slot+1)*int64(window)).Sub(now)
}

// counted builds the result for the count-th request of a window
func counted(count, max int, resetIn time.Duration) Result {
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= max,
		Limit:     max,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}
