// Package clock provides the version clock used to stamp record mutations
// and a logical clock abstraction so the sync scheduler can be tested
// without real timers.
package clock

import (
	"sync"
	"time"
)

// Timer is the subset of time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Clock abstracts wall time and timer creation.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is a Clock backed by the time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// VersionClock assigns per-record version markers. Versions are derived
// from wall-clock milliseconds but never decrease, even if the wall clock
// steps backwards or two mutations land in the same millisecond.
type VersionClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewVersionClock returns a version clock reading the system time.
func NewVersionClock() *VersionClock {
	return &VersionClock{now: time.Now}
}

// NewVersionClockAt returns a version clock reading from the given time
// source. Used by tests.
func NewVersionClockAt(now func() time.Time) *VersionClock {
	return &VersionClock{now: now}
}

// Next returns a fresh version marker: at least the current wall clock in
// milliseconds, and strictly greater than any marker previously issued or
// observed.
func (c *VersionClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.now().UnixMilli()
	if v <= c.last {
		v = c.last + 1
	}
	c.last = v
	return v
}

// Observe folds in a version seen on a remote copy so that subsequent local
// stamps compare greater than it.
func (c *VersionClock) Observe(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.last {
		c.last = v
	}
}
