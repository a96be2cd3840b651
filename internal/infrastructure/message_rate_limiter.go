package infrastructure

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSendRateExceeded means no token frees up before the caller's deadline.
var ErrSendRateExceeded = errors.New("send rate exceeded")

// MessageRateLimiter implements token bucket rate limiting per tenant
type MessageRateLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*tokenBucket
	rate        float64 // tokens per second
	maxTokens   float64 // burst capacity
	cleanupTick time.Duration
	idleAfter   time.Duration
	now         func() time.Time
}

type tokenBucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewMessageRateLimiter creates a rate limiter with specified rate and burst
// rate: messages per second allowed
// burst: maximum burst capacity
func NewMessageRateLimiter(rate float64, burst int) *MessageRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MessageRateLimiter{
		buckets:     make(map[string]*tokenBucket),
		rate:        rate,
		maxTokens:   float64(burst),
		cleanupTick: 5 * time.Minute,
		idleAfter:   10 * time.Minute,
		now:         time.Now,
	}
}

// Allow checks if the tenant can send a message (consumes 1 token if allowed).
// A non-positive rate disables limiting.
func (rl *MessageRateLimiter) Allow(key string) bool {
	if rl.rate <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[key]
	now := rl.now()

	if !exists {
		// Create new bucket with full tokens
		rl.buckets[key] = &tokenBucket{
			tokens:     rl.maxTokens - 1, // Consume 1 token
			lastUpdate: now,
		}
		return true
	}

	// Refill tokens based on time elapsed
	elapsed := now.Sub(bucket.lastUpdate).Seconds()
	bucket.tokens += elapsed * rl.rate
	if bucket.tokens > rl.maxTokens {
		bucket.tokens = rl.maxTokens
	}
	bucket.lastUpdate = now

	if bucket.tokens >= 1 {
		bucket.tokens -= 1
		return true
	}

	return false
}

// WaitTime returns how long to wait before next message is allowed
func (rl *MessageRateLimiter) WaitTime(key string) time.Duration {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	bucket, exists := rl.buckets[key]
	if !exists || rl.rate <= 0 {
		return 0
	}

	elapsed := rl.now().Sub(bucket.lastUpdate).Seconds()
	currentTokens := bucket.tokens + elapsed*rl.rate

	if currentTokens >= 1 {
		return 0
	}

	// Calculate wait time for 1 token
	needed := 1 - currentTokens
	waitSeconds := needed / rl.rate
	return time.Duration(waitSeconds * float64(time.Second))
}

// Wait blocks until key has a token, pacing bursts instead of dropping them.
// It gives up early when the next token would arrive after ctx's deadline.
func (rl *MessageRateLimiter) Wait(ctx context.Context, key string) error {
	for {
		if rl.Allow(key) {
			return nil
		}
		d := rl.WaitTime(key)
		if d <= 0 {
			d = time.Millisecond
		}
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < d {
			return ErrSendRateExceeded
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Run removes stale buckets periodically until ctx is done.
func (rl *MessageRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.gc()
		}
	}
}

func (rl *MessageRateLimiter) gc() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.lastUpdate) > rl.idleAfter {
			delete(rl.buckets, key)
		}
	}
}
