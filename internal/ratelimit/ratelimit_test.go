package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitEnforcesMinimumDelay(t *testing.T) {
	r := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitRespectsContext(t *testing.T) {
	r := NewSimpleRateLimiter(time.Minute, time.Minute)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitCancelWhileAnotherWorkerSleeps(t *testing.T) {
	r := NewSimpleRateLimiter(300*time.Millisecond, 300*time.Millisecond)
	require.NoError(t, r.Wait(context.Background()))

	// Occupy the next slot so the cancelled caller has to wait behind it.
	go func() { _ = r.Wait(context.Background()) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestSetDelay(t *testing.T) {
	r := NewSimpleRateLimiter(time.Minute, time.Minute)
	r.SetDelay(time.Millisecond, 2*time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
