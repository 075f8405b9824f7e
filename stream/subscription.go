package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/seonyeopkim/asyncaction/internal/fifo"
)

// envelope is either a value or a flush barrier.
type envelope[T any] struct {
	value   T
	barrier chan struct{}
}

type subscriber[T any] struct {
	queue     *fifo.Queue[envelope[T]]
	sink      func(T)
	detach    func()
	cancelled atomic.Bool
}

// start launches the delivery goroutine.
func (s *subscriber[T]) start() *Subscription {
	sub := &Subscription{
		done:  make(chan struct{}),
		flush: s.flush,
	}
	sub.cancel = func() {
		s.cancelled.Store(true)
		if s.detach != nil {
			s.detach()
		}
		s.queue.Close()
	}

	go func() {
		defer close(sub.done)
		for {
			env, ok := s.queue.Pop(context.Background())
			if !ok {
				return
			}
			if env.barrier != nil {
				close(env.barrier)
				continue
			}
			if s.cancelled.Load() {
				continue
			}
			s.sink(env.value)
		}
	}()

	return sub
}

func (s *subscriber[T]) flush(ctx context.Context, done <-chan struct{}) error {
	barrier := make(chan struct{})
	if !s.queue.Push(envelope[T]{barrier: barrier}) {
		// Closed: the goroutine drains what is left and exits.
		barrier = nil
	}

	select {
	case <-barrier:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscription is a live attachment to a Stream.
type Subscription struct {
	cancelOnce sync.Once
	cancel     func()
	flush      func(ctx context.Context, done <-chan struct{}) error
	done       chan struct{}
}

// Cancel detaches the subscription. Values still queued are discarded.
// Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(s.cancel)
}

// Done returns a channel closed once delivery has stopped, either after
// Cancel or after the source completed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Flush waits until every value queued before the call has been delivered.
func (s *Subscription) Flush(ctx context.Context) error {
	return s.flush(ctx, s.done)
}
