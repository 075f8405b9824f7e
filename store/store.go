package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seonyeopkim/asyncaction/mainloop"
	"github.com/seonyeopkim/asyncaction/observability"
	"github.com/seonyeopkim/asyncaction/stream"
)

// Store owns a state value and the reducer that transforms it.
//
// Thread-safety model:
//   - Send, Run, CurrentState, Stream, Settle, Close: safe from any goroutine
//   - reductions are serialized; at most one chain mutates state at a time
//   - Reducer.Reduce must not call back into the store
//
// The zero value is not usable; create stores with New.
type Store[S, A, AA any] struct {
	reducer Reducer[S, A, AA]

	mu    sync.Mutex // serializes reduction chains; guards state
	state *S

	subject *stream.Subject[S]
	equal   func(a, b S) bool
	clone   func(state *S) S

	loop     *mainloop.Loop
	ownsLoop bool

	observer observability.Observer
	clock    *mainloop.Clock
	chainIDs ChainIDGenerator
	maxSteps int
	tasks    *taskGroup

	ctx       context.Context // cancelled by Close; parent of task contexts
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a store owning reducer and initial. The store keeps the
// pointer: from now on only the store writes through it.
//
// New panics if initial is nil or if WithEqual/WithClone were given for a
// different state type.
func New[S, A, AA any](reducer Reducer[S, A, AA], initial *S, opts ...Option) *Store[S, A, AA] {
	if initial == nil {
		panic("store: initial state must not be nil")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[S, A, AA]{
		reducer:  reducer,
		state:    initial,
		equal:    equalValues[S],
		clone:    func(state *S) S { return *state },
		loop:     o.loop,
		clock:    o.clock,
		chainIDs: o.chainIDs,
		maxSteps: o.maxSteps,
		tasks:    newTaskGroup(o.maxTasks),
	}

	if o.equal != nil {
		eq, ok := o.equal.(func(a, b S) bool)
		if !ok {
			panic(fmt.Sprintf("store: WithEqual function has type %T, want func(a, b %T) bool", o.equal, *initial))
		}
		s.equal = eq
	}
	if o.clone != nil {
		cl, ok := o.clone.(func(state *S) S)
		if !ok {
			panic(fmt.Sprintf("store: WithClone function has type %T, want func(*%T) %T", o.clone, *initial, *initial))
		}
		s.clone = cl
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	observers := append([]observability.Observer{observability.NewSlogObserver(logger)}, o.observers...)
	s.observer = observability.NewMultiObserver(observers...)

	if s.clock == nil {
		s.clock = mainloop.NewClock()
	}
	if s.chainIDs == nil {
		s.chainIDs = UUIDv7ChainIDs{}
	}
	if s.loop == nil {
		s.loop = mainloop.New(mainloop.WithLogger(logger))
		s.ownsLoop = true
		// A fresh loop cannot already be running.
		_ = s.loop.Start()
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.subject = stream.NewSubject(s.clone(s.state))

	return s
}

// CurrentState returns a snapshot of the state as of the last completed
// reduction step. Safe from any goroutine, including observers and reducers.
func (s *Store[S, A, AA]) CurrentState() S {
	return s.subject.Value()
}

// Loop returns the main loop the store dispatches onto.
func (s *Store[S, A, AA]) Loop() *mainloop.Loop {
	return s.loop
}

// Settle waits until no async task is running and no dispatch is waiting on
// the main loop. New work started while waiting extends the wait.
func (s *Store[S, A, AA]) Settle(ctx context.Context) error {
	return s.tasks.wait(ctx)
}

// InFlight returns the number of running async tasks plus dispatches waiting
// on the main loop.
func (s *Store[S, A, AA]) InFlight() int {
	return s.tasks.inFlight()
}

// Close shuts the store down and waits for in-flight work. See Shutdown.
func (s *Store[S, A, AA]) Close() error {
	return s.Shutdown(context.Background())
}

// Shutdown cancels the context handed to Reducer.Run, waits for in-flight
// work to settle (or ctx to end), then stops the store's own loop and
// completes every stream subscription.
//
// Work that finishes after Shutdown gave up is dropped. A loop supplied with
// WithLoop is left running.
func (s *Store[S, A, AA]) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.tasks.wait(ctx)

		if s.ownsLoop {
			s.loop.Stop()
			select {
			case <-s.loop.Done():
			case <-ctx.Done():
				if err == nil {
					err = ctx.Err()
				}
			}
		}

		s.subject.Close()
	})
	return err
}

// publishLocked snapshots the state and publishes it. Caller holds s.mu.
func (s *Store[S, A, AA]) publishLocked() S {
	snap := s.clone(s.state)
	s.subject.Publish(snap)
	return snap
}
