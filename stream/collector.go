package stream

import (
	"sync"
	"time"
)

// Collector records values delivered from another goroutine, typically by a
// subscription sink.
//
//	var got stream.Collector[int]
//	sub := counts.Sink(got.Add)
type Collector[T any] struct {
	mu     sync.Mutex
	values []T
}

// Add appends v. Safe to use as a stream sink.
func (c *Collector[T]) Add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

// Values returns a copy of the recorded values.
func (c *Collector[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.values))
	copy(out, c.values)
	return out
}

// Len returns the number of recorded values.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// WaitLen polls until at least n values were recorded or timeout elapses.
func (c *Collector[T]) WaitLen(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if c.Len() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
