package market

import (
	"sync"
	"time"
)

// Clock supplies the current time in milliseconds.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().UnixMilli() }

type monotonicClock struct {
	mu    sync.Mutex
	inner Clock
	last  int64
}

// Monotonic wraps inner so that Now never returns a value smaller than one it
// already returned.
func Monotonic(inner Clock) Clock {
	if inner == nil {
		inner = SystemClock{}
	}
	return &monotonicClock{inner: inner}
}

func (c *monotonicClock) Now() int64 {
	now := c.inner.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now < c.last {
		return c.last
	}
	c.last = now
	return now
}
