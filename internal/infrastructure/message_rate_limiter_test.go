package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewMessageRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("t1"))
	assert.True(t, rl.Allow("t1"))
	assert.False(t, rl.Allow("t1"))
	assert.Equal(t, time.Second, rl.WaitTime("t1"))

	// other tenants have their own bucket
	assert.True(t, rl.Allow("t2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("t1"))
	assert.False(t, rl.Allow("t1"))
}

func TestMessageRateLimiter_Disabled(t *testing.T) {
	rl := NewMessageRateLimiter(0, 1)
	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow("t1"))
	}
	assert.Empty(t, rl.buckets)
}

func TestMessageRateLimiter_GC(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewMessageRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.Allow("t1")
	now = now.Add(5 * time.Minute)
	rl.Allow("t2")
	now = now.Add(6 * time.Minute)
	rl.gc()

	assert.Len(t, rl.buckets, 1)
}

func TestMessageRateLimiter_WaitPaces(t *testing.T) {
	rl := NewMessageRateLimiter(200, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx, "t1"), "send %d waits for the refill instead of failing", i)
	}
}

func TestMessageRateLimiter_WaitGivesUpBeforeDeadline(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewMessageRateLimiter(1, 1)
	rl.now = func() time.Time { return now }
	require.True(t, rl.Allow("t1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx, "t1"), ErrSendRateExceeded)
}
