package pipeline

import (
	"sync"

	"github.com/banshee-data/motion.report/internal/detector"
)

// Counter tallies fired signals.
type Counter struct {
	mu    sync.Mutex
	steps int64
	jumps int64
}

// Add counts s and returns the new totals. SignalNone is ignored.
func (c *Counter) Add(s detector.Signal) (steps, jumps int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch s {
	case detector.SignalStep:
		c.steps++
	case detector.SignalJump:
		c.jumps++
	}
	return c.steps, c.jumps
}

// Snapshot returns the current totals.
func (c *Counter) Snapshot() (steps, jumps int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps, c.jumps
}

// Seed sets the totals, e.g. from stored events at startup.
func (c *Counter) Seed(steps, jumps int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps, c.jumps = steps, jumps
}
