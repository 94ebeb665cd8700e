package worker

import "sync"

// Completions is a multi-producer, single-consumer queue. Background jobs
// Push results; the world loop takes everything pending once per tick.
type Completions[T any] struct {
	mu      sync.Mutex
	pending []T
}

func (c *Completions[T]) Push(v T) {
	c.mu.Lock()
	c.pending = append(c.pending, v)
	c.mu.Unlock()
}

// Drain removes and returns all pending results in arrival order.
func (c *Completions[T]) Drain() []T {
	c.mu.Lock()
	out := c.pending
	c.pending = nil
	c.mu.Unlock()
	return out
}

func (c *Completions[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
