package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant to reaction logic so it stays
// deterministic under test
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// New returns a Clock backed by the system time in UTC
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TestClock is a manually advanced Clock for tests
type TestClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewTestClock(now time.Time) *TestClock {
	return &TestClock{now: now.UTC()}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetTime moves the clock to the given instant
func (c *TestClock) SetTime(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

// Advance moves the clock forward by d
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
