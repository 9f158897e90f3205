package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter paces work between batches.
type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter sleeps a full delay on every Wait. With min < max the delay
// is drawn uniformly from [min, max).
type SimpleRateLimiter struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	waits    int
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// NewFixed returns a limiter that always pauses exactly d.
func NewFixed(d time.Duration) *SimpleRateLimiter {
	return NewSimpleRateLimiter(d, d)
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	delay := r.calculateDelay()
	r.waits++
	r.mu.Unlock()

	return Sleep(ctx, delay)
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

// Waits is the number of Wait calls so far.
func (r *SimpleRateLimiter) Waits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waits
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
