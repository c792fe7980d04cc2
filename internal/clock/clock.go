// Package clock provides the millisecond wall-clock timestamps used as both
// row version and sync watermark.
package clock

import (
	"sync"
	"time"
)

// Clock produces millisecond timestamps. Injected everywhere a row version
// or watermark is stamped, so tests can substitute a deterministic source.
type Clock interface {
	// NowMillis returns the current time in milliseconds since epoch.
	NowMillis() int64
}

// System is a Clock backed by the wall clock, guarded to never step
// backwards: two calls always return non-decreasing values even across an
// NTP adjustment, so a row edited right after a sync cannot be stamped
// below the watermark it just received.
type System struct {
	mu   sync.Mutex
	last int64
}

// NewSystem creates a monotonic wall-clock source.
func NewSystem() *System {
	return &System{}
}

// NowMillis returns the wall clock in ms, clamped to be non-decreasing.
func (c *System) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}

// Fixed is a Clock that returns a programmable sequence of timestamps.
// Used in tests.
type Fixed struct {
	mu  sync.Mutex
	now int64
}

// NewFixed creates a Fixed clock starting at now.
func NewFixed(now int64) *Fixed {
	return &Fixed{now: now}
}

// NowMillis returns the configured timestamp.
func (c *Fixed) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to a new timestamp.
func (c *Fixed) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d milliseconds.
func (c *Fixed) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}
