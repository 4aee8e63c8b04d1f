// Package ratelimit provides token-bucket and sliding-window rate limiting
// for chat users, online answers, and outbound LINE API calls.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
)

// Limiter implements a token bucket rate limiter.
// It is safe for concurrent use.
//
// Tokens are added at refillRate per second up to maxTokens; each request
// consumes one token.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// New creates a limiter holding at most maxTokens tokens, refilled at
// refillRate tokens per second. The bucket starts full so the first burst of
// maxTokens requests passes immediately.
//
// Example: New(10, 1.0/6) allows a burst of 10 and then one request every
// six seconds.
func New(maxTokens, refillRate float64) *Limiter {
	return newWithClock(maxTokens, refillRate, time.Now)
}

func newWithClock(maxTokens, refillRate float64, now func() time.Time) *Limiter {
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// refill adds tokens based on elapsed time since last refill.
// Must be called with mu held.
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Allow reports whether a request may proceed and, if so, consumes one
// token. It never blocks.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// Check reports whether a token is available without consuming it.
// Pair with Consume under an external lock for multi-layer checks.
func (l *Limiter) Check() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens >= 1.0
}

// Consume takes a token after a successful Check. If the token was taken
// in between, Consume is a no-op rather than driving the bucket negative.
func (l *Limiter) Consume() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
	}
}

// Wait blocks until a token is available. When ctx ends first the error
// wraps both ErrRateLimitExceeded and the context error.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		waitTime := time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", domerrors.ErrRateLimitExceeded, ctx.Err())
		case <-timer.C:
		}
	}
}

// Available returns the current number of available tokens, after refill.
// The value can be fractional.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// IsFull reports whether the bucket is at capacity, i.e. idle.
func (l *Limiter) IsFull() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens >= l.maxTokens
}
