// Package stream implements multi-subscriber value streams.
//
// A Subject holds a current value and broadcasts every published value to
// its subscribers. New subscribers first receive the value current at
// subscription time, then every later value in publication order.
//
// Each subscription owns an unbounded queue and a delivery goroutine, so a
// slow subscriber never blocks the publisher or the other subscribers.
// Streams are lazy: nothing is queued until a subscription is attached, and
// a subscription cannot be restarted once cancelled.
//
// Stream values are shaped with the combinators in this package:
//
//	counts := stream.Distinct(stream.Map(subject.Stream(), func(s State) int {
//	    return s.Counter
//	}))
//	sub := counts.Sink(func(n int) { fmt.Println(n) })
//	defer sub.Cancel()
package stream

import (
	"sync"

	"github.com/seonyeopkim/asyncaction/internal/fifo"
)

// Subject is a broadcast source with a current value.
// Safe for concurrent use.
type Subject[T any] struct {
	mu     sync.Mutex
	value  T
	nextID uint64
	subs   map[uint64]*subscriber[T]
	closed bool
}

// NewSubject creates a subject whose current value is initial.
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		value: initial,
		subs:  make(map[uint64]*subscriber[T]),
	}
}

// Publish makes v the current value and queues it for every subscriber.
// Publish never blocks on subscribers. Values published after Close are
// dropped.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.value = v
	for _, sub := range s.subs {
		sub.queue.Push(envelope[T]{value: v})
	}
}

// Value returns the current value.
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribers returns the number of attached subscriptions.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close completes every subscription once its queued values are delivered.
// Later subscriptions receive the final value and complete.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	for id, sub := range s.subs {
		sub.queue.Close()
		delete(s.subs, id)
	}
}

// Stream returns the subject as a Stream.
func (s *Subject[T]) Stream() Stream[T] {
	return Stream[T]{attach: s.subscribe}
}

// subscribe registers sink and replays the current value to it.
func (s *Subject[T]) subscribe(sink func(T)) *Subscription {
	sub := &subscriber[T]{
		queue: fifo.New[envelope[T]](),
		sink:  sink,
	}

	s.mu.Lock()
	sub.queue.Push(envelope[T]{value: s.value})
	if s.closed {
		sub.queue.Close()
	} else {
		id := s.nextID
		s.nextID++
		s.subs[id] = sub
		sub.detach = func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}
	}
	s.mu.Unlock()

	return sub.start()
}
