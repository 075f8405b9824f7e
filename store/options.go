package store

import (
	"log/slog"

	"github.com/seonyeopkim/asyncaction/mainloop"
	"github.com/seonyeopkim/asyncaction/observability"
)

type options struct {
	loop      *mainloop.Loop
	logger    *slog.Logger
	observers []observability.Observer
	equal     any // func(a, b S) bool
	clone     any // func(*S) S
	maxSteps  int
	maxTasks  int64
	chainIDs  ChainIDGenerator
	clock     *mainloop.Clock
}

// Option configures a Store.
type Option func(*options)

// WithLoop makes the store dispatch onto an existing loop, typically the one
// the host application runs its UI work on. The store does not start or stop
// a loop it did not create.
//
// Default: the store creates, starts and owns a private loop.
func WithLoop(loop *mainloop.Loop) Option {
	return func(o *options) {
		o.loop = loop
	}
}

// WithLogger sets the logger receiving diagnostics.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver adds an observer for store events, in addition to the logger.
func WithObserver(observer observability.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// WithEqual sets the equality used to deduplicate the whole-state stream.
// Default: structural equality (go-cmp), honouring Equal methods.
func WithEqual[S any](equal func(a, b S) bool) Option {
	return func(o *options) {
		o.equal = equal
	}
}

// WithClone sets how state snapshots are taken. The default is a shallow
// copy, which is enough as long as reducers replace slices and maps instead
// of mutating them in place.
func WithClone[S any](clone func(state *S) S) Option {
	return func(o *options) {
		o.clone = clone
	}
}

// WithMaxSteps bounds the number of reductions in one synchronous chain.
// A chain that exceeds the bound is cut short and reported as an error event.
// Default: 0, unbounded.
func WithMaxSteps(maxSteps int) Option {
	return func(o *options) {
		o.maxSteps = maxSteps
	}
}

// WithMaxConcurrentTasks bounds the number of async tasks running Reducer.Run
// at once. Tasks over the bound wait for a slot highest priority first, in
// FIFO order within a priority.
// Default: 0, unbounded.
func WithMaxConcurrentTasks(n int64) Option {
	return func(o *options) {
		o.maxTasks = n
	}
}

// WithChainIDs sets the generator of chain correlation IDs.
// Default: UUIDv7ChainIDs.
func WithChainIDs(gen ChainIDGenerator) Option {
	return func(o *options) {
		o.chainIDs = gen
	}
}

// WithClock sets the logical clock stamping store events.
func WithClock(clock *mainloop.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// DispatchOption configures a single Send or Run call.
type DispatchOption func(*dispatchConfig)

type dispatchConfig struct {
	autoThreading bool
	priority      Priority
	hasPriority   bool
}

// WithAutoThreading makes Send hop onto the main loop when called from
// another goroutine. On the loop it dispatches immediately.
func WithAutoThreading() DispatchOption {
	return func(c *dispatchConfig) {
		c.autoThreading = true
	}
}

// WithPriority sets the priority of an auto-threaded Send or of a Run.
func WithPriority(p Priority) DispatchOption {
	return func(c *dispatchConfig) {
		c.priority = p
		c.hasPriority = true
	}
}

func newDispatchConfig(opts []DispatchOption) dispatchConfig {
	cfg := dispatchConfig{priority: PriorityDefault}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.priority.Valid() {
		cfg.priority = PriorityDefault
	}
	return cfg
}
