package ratelimit

import (
	"sync"
	"time"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
)

// Decision is the outcome of a keyed rate-limit check.
type Decision int

const (
	// Allowed means the request may proceed.
	Allowed Decision = iota
	// Throttled means the token bucket is empty.
	Throttled
	// DailyExhausted means the rolling 24h quota is used up.
	DailyExhausted
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "user", "llm")
	Name string

	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// DailyLimit enables a rolling 24h cap per key (0 = disabled).
	DailyLimit int

	// CleanupPeriod is how often idle keys are dropped.
	CleanupPeriod time.Duration

	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one token bucket (and optional daily window) per key,
// such as a LINE user ID.
//
// A request passes only when both layers have room:
//   - the token bucket bounds bursts (Burst tokens, RefillRate per second)
//   - the sliding window bounds requests per day (DailyLimit, 0 disables it)
//
// Entries are created on first use and removed by the cleanup loop once they
// are idle again, so memory follows the number of recently active users.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	config  KeyedConfig
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// keyedEntry locks its two layers together so a check-then-consume is atomic.
type keyedEntry struct {
	mu      sync.Mutex
	limiter *Limiter
	daily   *SlidingWindowCounter
}

// NewKeyedLimiter starts a limiter with a background cleanup loop.
// Call Stop when done.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	kl := newKeyedWithClock(cfg, time.Now)
	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

func newKeyedWithClock(cfg KeyedConfig, now func() time.Time) *KeyedLimiter {
	return &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		config:  cfg,
		now:     now,
		stopCh:  make(chan struct{}),
	}
}

// Allow reports whether a request for key may proceed, consuming from both
// layers only when both pass. An empty key is never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.Decide(key) == Allowed
}

// Decide is Allow with the reason for a rejection.
func (kl *KeyedLimiter) Decide(key string) Decision {
	if key == "" {
		return Allowed
	}

	entry := kl.entry(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.daily.Check() {
		kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
		return DailyExhausted
	}
	if !entry.limiter.Check() {
		kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
		return Throttled
	}

	entry.daily.Consume()
	entry.limiter.Consume()
	return Allowed
}

func (kl *KeyedLimiter) entry(key string) *keyedEntry {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if exists {
		return entry
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	if entry, exists = kl.entries[key]; exists {
		return entry
	}
	entry = &keyedEntry{
		limiter: newWithClock(kl.config.Burst, kl.config.RefillRate, kl.now),
		daily:   newSlidingWindowWithClock(kl.config.DailyLimit, 24*time.Hour, kl.now),
	}
	kl.entries[key] = entry
	return entry
}

// Available returns the tokens left for key (Burst for unseen keys).
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if !exists {
		return kl.config.Burst
	}
	return entry.limiter.Available()
}

// DailyRemaining returns the remaining daily quota for key, or -1 when the
// daily layer is disabled.
func (kl *KeyedLimiter) DailyRemaining(key string) int {
	if kl.config.DailyLimit <= 0 {
		return -1
	}

	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if !exists {
		return kl.config.DailyLimit
	}
	return entry.daily.Remaining()
}

// UsageStats is a snapshot of one key's quota.
type UsageStats struct {
	BurstAvailable  float64
	BurstMax        float64
	BurstRefillRate float64 // tokens per second
	DailyRemaining  int     // -1 when the daily layer is disabled
	DailyMax        int     // -1 when the daily layer is disabled
}

// GetUsageStats reports the quota left for key without consuming any.
func (kl *KeyedLimiter) GetUsageStats(key string) UsageStats {
	dailyMax := kl.config.DailyLimit
	if dailyMax <= 0 {
		dailyMax = -1
	}
	return UsageStats{
		BurstAvailable:  kl.Available(key),
		BurstMax:        kl.config.Burst,
		BurstRefillRate: kl.config.RefillRate,
		DailyRemaining:  kl.DailyRemaining(key),
		DailyMax:        dailyMax,
	}
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// Cleanup drops keys whose bucket is full and whose daily window is empty.
func (kl *KeyedLimiter) Cleanup() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	removed := 0
	for key, entry := range kl.entries {
		if entry.limiter.IsFull() && entry.daily.Idle() {
			delete(kl.entries, key)
			removed++
		}
	}
	return removed
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Cleanup()
		}
	}
}

// Stop ends the cleanup loop. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.stopped.Do(func() { close(kl.stopCh) })
}
