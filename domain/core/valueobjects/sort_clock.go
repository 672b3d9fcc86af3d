package valueobjects

import (
	"sync"
	"time"
)

// SortClock hands out strictly increasing sort values. Values are unix
// milliseconds, bumped by one when two items are created in the same
// millisecond, so creation order is total.
type SortClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewSortClock creates a clock backed by time.Now
func NewSortClock() *SortClock {
	return &SortClock{now: time.Now}
}

func newSortClockWithSource(now func() time.Time) *SortClock {
	return &SortClock{now: now}
}

// Next returns the next sort value
func (c *SortClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.now().UnixMilli()
	if v <= c.last {
		v = c.last + 1
	}
	c.last = v
	return v
}

// Observe advances the clock past a value loaded from storage so that
// items created afterwards still sort after it.
func (c *SortClock) Observe(v int64) {
	c.mu.Lock()
	if v > c.last {
		c.last = v
	}
	c.mu.Unlock()
}

var defaultClock = NewSortClock()

// NextSortValue draws from the process-wide clock
func NextSortValue() int64 {
	return defaultClock.Next()
}

// ObserveSortValue advances the process-wide clock past a stored value
func ObserveSortValue(v int64) {
	defaultClock.Observe(v)
}
