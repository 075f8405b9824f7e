package stream

import (
	"context"
	"iter"
)

// Stream is a lazy, non-restartable sequence of values.
//
// A Stream does nothing until it is subscribed to with Sink, Chan or All.
// Every subscription gets its own copy of any combinator state, so two
// subscribers of the same deduplicated stream deduplicate independently.
type Stream[T any] struct {
	attach func(sink func(T)) *Subscription
}

// Sink subscribes fn to the stream. fn is called on the subscription's
// delivery goroutine, one value at a time, in publication order.
func (s Stream[T]) Sink(fn func(T)) *Subscription {
	return s.attach(fn)
}

// Chan subscribes to the stream and delivers values on the returned channel.
// The channel is closed when ctx is done or the source completes.
func (s Stream[T]) Chan(ctx context.Context) <-chan T {
	out := make(chan T)
	sub := s.attach(func(v T) {
		select {
		case out <- v:
		case <-ctx.Done():
		}
	})

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		}
		<-sub.Done()
		close(out)
	}()

	return out
}

// All returns the stream as an iterator. Iteration ends when ctx is done,
// the source completes, or the loop body breaks.
func (s Stream[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		for v := range s.Chan(ctx) {
			if !yield(v) {
				return
			}
		}
	}
}

// Map transforms every value of s with f.
func Map[T, U any](s Stream[T], f func(T) U) Stream[U] {
	return Stream[U]{attach: func(sink func(U)) *Subscription {
		return s.attach(func(v T) { sink(f(v)) })
	}}
}

// Filter passes only the values for which keep returns true.
func Filter[T any](s Stream[T], keep func(T) bool) Stream[T] {
	return Stream[T]{attach: func(sink func(T)) *Subscription {
		return s.attach(func(v T) {
			if keep(v) {
				sink(v)
			}
		})
	}}
}

// DistinctFunc drops values equal to the previously delivered value.
func DistinctFunc[T any](s Stream[T], equal func(a, b T) bool) Stream[T] {
	return Stream[T]{attach: func(sink func(T)) *Subscription {
		var (
			last T
			seen bool
		)
		return s.attach(func(v T) {
			if seen && equal(last, v) {
				return
			}
			last, seen = v, true
			sink(v)
		})
	}}
}

// Distinct drops consecutive duplicates of comparable values.
func Distinct[T comparable](s Stream[T]) Stream[T] {
	return DistinctFunc(s, func(a, b T) bool { return a == b })
}

// DistinctBy drops values whose key equals the key of the previously
// delivered value.
func DistinctBy[T any, K comparable](s Stream[T], key func(T) K) Stream[T] {
	return DistinctFunc(s, func(a, b T) bool { return key(a) == key(b) })
}
