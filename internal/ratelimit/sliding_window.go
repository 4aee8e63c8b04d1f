package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a rolling window with two fixed windows:
//
//	effective = current + previous × (remaining part of current window / window)
//
// A nil counter is disabled and allows everything.
type SlidingWindowCounter struct {
	mu              sync.Mutex
	currCount       int
	prevCount       int
	currWindowStart time.Time
	windowDuration  time.Duration
	maxRequests     int
	now             func() time.Time
}

// NewSlidingWindowCounter returns nil when maxRequests <= 0.
func NewSlidingWindowCounter(maxRequests int, windowDuration time.Duration) *SlidingWindowCounter {
	return newSlidingWindowWithClock(maxRequests, windowDuration, time.Now)
}

func newSlidingWindowWithClock(maxRequests int, windowDuration time.Duration, now func() time.Time) *SlidingWindowCounter {
	if maxRequests <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		currWindowStart: now(),
		windowDuration:  windowDuration,
		maxRequests:     maxRequests,
		now:             now,
	}
}

// Allow consumes one slot if the window has room.
func (swc *SlidingWindowCounter) Allow() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	if swc.effective() >= float64(swc.maxRequests) {
		return false
	}
	swc.currCount++
	return true
}

// Check reports whether a request would be allowed without consuming.
func (swc *SlidingWindowCounter) Check() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	return swc.effective() < float64(swc.maxRequests)
}

// Consume records a request after a successful Check.
func (swc *SlidingWindowCounter) Consume() {
	if swc == nil {
		return
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	if swc.effective() < float64(swc.maxRequests) {
		swc.currCount++
	}
}

// Remaining returns the approximate remaining quota, or -1 when disabled.
func (swc *SlidingWindowCounter) Remaining() int {
	if swc == nil {
		return -1
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	remaining := float64(swc.maxRequests) - swc.effective()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// Idle reports whether no request counts toward the window any more.
func (swc *SlidingWindowCounter) Idle() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	return swc.effective() == 0
}

// rotate moves to the current window. Must be called with mu held.
func (swc *SlidingWindowCounter) rotate() {
	elapsed := swc.now().Sub(swc.currWindowStart)
	if elapsed < swc.windowDuration {
		return
	}

	windowsPassed := int(elapsed / swc.windowDuration)
	if windowsPassed == 1 {
		swc.prevCount = swc.currCount
	} else {
		swc.prevCount = 0
	}
	swc.currCount = 0
	swc.currWindowStart = swc.currWindowStart.Add(time.Duration(windowsPassed) * swc.windowDuration)
}

// effective returns the weighted count. Must be called with mu held.
func (swc *SlidingWindowCounter) effective() float64 {
	elapsed := swc.now().Sub(swc.currWindowStart)
	overlap := float64(swc.windowDuration-elapsed) / float64(swc.windowDuration)
	overlap = min(max(overlap, 0), 1)
	return float64(swc.currCount) + float64(swc.prevCount)*overlap
}
