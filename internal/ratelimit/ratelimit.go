package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter paces page fetches with a jittered delay so crawl
// traffic does not form a fixed cadence. Each Wait reserves the next slot
// under the lock and sleeps outside it, so concurrent workers queue up on
// their slots instead of on the mutex and stay cancellable throughout.
type SimpleRateLimiter struct {
	minDelay time.Duration
	maxDelay time.Duration
	nextSlot time.Time
	mu       sync.Mutex
	jitter   bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	slot := r.nextSlot
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	r.nextSlot = slot.Add(r.calculateDelay())
	r.mu.Unlock()

	waitTime := time.Until(slot)
	if waitTime <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(waitTime):
	}
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.minDelay >= r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return r.minDelay + jitter
}
