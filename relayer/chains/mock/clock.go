package mock

import (
	"sync"
	"time"
)

// GenesisTime is the default start time of a Clock.
var GenesisTime = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a deterministic clock shared by the chains of one network. Every
// block takes the next tick, so block times are strictly increasing across
// all chains using the clock.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start.UTC(), step: step}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Next advances the clock by one step and returns the new time.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
