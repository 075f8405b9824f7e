// Package mainloop provides the designated "main" execution context.
//
// A Loop is a single goroutine that runs submitted closures one at a time.
// Anything that must be serialized the way UI frameworks serialize work on
// their main thread (state mutation, change publication) is posted to it.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Work is submitted from any goroutine with Post or Do. Run drains the queued
// work on exactly one goroutine, highest Priority first and in submission
// order within a priority. Code running inside a task can ask OnLoop to learn
// whether it is on the loop goroutine.
//
// Shutdown:
// Stop closes the loop for new work and lets Run drain what is already queued.
// Cancelling the context passed to Run returns before the next task and
// drops queued work.
package mainloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/seonyeopkim/asyncaction/internal/fifo"
)

var (
	// ErrAlreadyRunning is returned by Run when the loop already has a runner.
	ErrAlreadyRunning = errors.New("mainloop: already running")

	// ErrStopped is returned when work is submitted to a stopped loop.
	ErrStopped = errors.New("mainloop: stopped")
)

type task struct {
	fn  func()
	seq int64
}

// Loop is a single-goroutine executor.
//
// Thread-safety model:
//   - Post, Do, OnLoop, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Loop struct {
	queues [numPriorities]*fifo.Queue[task]
	wake   chan struct{} // buffered, size 1
	clock  *Clock
	logger *slog.Logger

	owner   atomic.Uint64 // goroutine id of the runner, 0 when idle
	running atomic.Bool

	stopOnce sync.Once
	stopped  chan struct{}
	started  chan struct{}
	done     chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for task panics and lifecycle messages.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock sets the clock used to stamp posted tasks.
func WithClock(clock *Clock) Option {
	return func(l *Loop) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates a loop. The loop does nothing until Run or Start is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:    make(chan struct{}, 1),
		clock:   NewClock(),
		logger:  slog.Default(),
		stopped: make(chan struct{}),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := range l.queues {
		l.queues[i] = fifo.New[task]()
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start runs the loop on a new goroutine and returns once it is accepting
// work on that goroutine.
func (l *Loop) Start() error {
	if l.running.Load() {
		return ErrAlreadyRunning
	}
	errc := make(chan error, 1)
	go func() {
		errc <- l.Run(context.Background())
	}()
	select {
	case <-l.started:
		return nil
	case err := <-errc:
		return err
	}
}

// Run drains posted work until Stop is called or ctx is cancelled.
// Blocks the calling goroutine, which becomes the loop goroutine.
//
// Returns nil after a Stop, ctx.Err() after cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	l.owner.Store(currentGoroutineID())
	defer func() {
		l.owner.Store(0)
		close(l.done)
	}()

	l.logger.Debug("main loop starting")
	close(l.started)

	for {
		if ctx.Err() != nil {
			return l.abandon(ctx)
		}
		if t, ok := l.next(); ok {
			l.execute(t)
			continue
		}

		select {
		case <-ctx.Done():
			return l.abandon(ctx)

		case <-l.stopped:
			// Drain whatever was queued before Stop.
			for {
				t, ok := l.next()
				if !ok {
					break
				}
				l.execute(t)
			}
			l.logger.Debug("main loop stopping: stopped")
			return nil

		case <-l.wake:
		}
	}
}

// Stop closes the loop for new work. Run drains queued tasks and returns.
// Stop does not wait; use Done to wait for Run to return.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.closeQueues()
		close(l.stopped)
	})
}

// Done returns a channel closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop at the given priority.
// Safe from any goroutine, including the loop itself; fn never runs inline.
// Returns false if the loop has been stopped.
func (l *Loop) Post(p Priority, fn func()) bool {
	if !p.Valid() {
		p = PriorityDefault
	}
	if !l.queues[p].Push(task{fn: fn, seq: l.clock.Next()}) {
		return false
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
// If the caller is already on the loop, fn runs inline.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if l.OnLoop() {
		fn()
		return nil
	}

	finished := make(chan struct{})
	if !l.Post(PriorityDefault, func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// Run returned; the task may have been dropped.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) OnLoop() bool {
	owner := l.owner.Load()
	return owner != 0 && owner == currentGoroutineID()
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	select {
	case <-l.done:
		return false
	default:
		return l.running.Load()
	}
}

// Pending returns the number of queued tasks across all priorities.
func (l *Loop) Pending() int {
	n := 0
	for _, q := range l.queues {
		n += q.Len()
	}
	return n
}

// Clock returns the clock used to stamp posted tasks.
func (l *Loop) Clock() *Clock {
	return l.clock
}

// next pops the front task of the highest non-empty priority.
func (l *Loop) next() (task, bool) {
	for p := numPriorities - 1; p >= 0; p-- {
		if t, ok := l.queues[p].TryPop(); ok {
			return t, true
		}
	}
	return task{}, false
}

// execute runs one task. A panicking task is logged and the loop keeps going.
func (l *Loop) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("main loop task panicked",
				"seq", t.seq,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	t.fn()
}

// abandon closes the loop after cancellation. Queued tasks never run.
func (l *Loop) abandon(ctx context.Context) error {
	l.closeQueues()
	l.logger.Debug("main loop stopping: context cancelled", "dropped", l.Pending())
	return ctx.Err()
}

func (l *Loop) closeQueues() {
	for _, q := range l.queues {
		q.Close()
	}
}
