package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/mainloop"
	"github.com/seonyeopkim/asyncaction/observability"
	"github.com/seonyeopkim/asyncaction/store"
	"github.com/seonyeopkim/asyncaction/stream"
)

// DefaultStepTimeout bounds how long one step may take to settle.
const DefaultStepTimeout = 5 * time.Second

type runConfig struct {
	logger      *slog.Logger
	observers   []observability.Observer
	stepTimeout time.Duration
}

// Option configures Run.
type Option func(*runConfig)

// WithLogger sets the logger handed to the scenario's store.
// Default: a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithObserver adds an observer of the scenario store's events, e.g. a
// journal run.
func WithObserver(observer observability.Observer) Option {
	return func(c *runConfig) {
		c.observers = append(c.observers, observer)
	}
}

// WithStepTimeout bounds each step. Default: DefaultStepTimeout.
func WithStepTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.stepTimeout = d
	}
}

// Run executes a scenario against a fresh demo store and evaluates its
// assertions. The error is non-nil only when the scenario could not be
// executed; failed assertions are reported in the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger:      observability.DiscardLogger(),
		stepTimeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	demoCfg, err := scenario.Config.Demo()
	if err != nil {
		return nil, err
	}

	recorder := observability.NewRecorder()
	storeOpts := []store.Option{
		store.WithLogger(cfg.logger),
		store.WithObserver(recorder),
		store.WithChainIDs(store.NewSequentialChainIDs(scenario.ChainPrefix)),
		store.WithClock(mainloop.NewClock()),
	}
	for _, obs := range cfg.observers {
		storeOpts = append(storeOpts, store.WithObserver(obs))
	}

	program, err := demo.Open(scenario.Demo, demoCfg, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open demo: %w", err)
	}
	defer program.Close()

	var states stream.Collector[any]
	sub := program.States().Sink(states.Add)
	defer sub.Cancel()

	for i, step := range scenario.Steps {
		if err := executeStep(ctx, program, step, cfg.stepTimeout); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	flushCtx, cancel := context.WithTimeout(ctx, cfg.stepTimeout)
	defer cancel()
	if err := sub.Flush(flushCtx); err != nil {
		return nil, fmt.Errorf("flush state stream: %w", err)
	}

	result := NewResult()
	for _, state := range states.Values() {
		m, err := toMap(state)
		if err != nil {
			return nil, fmt.Errorf("encode state: %w", err)
		}
		result.States = append(result.States, m)
	}
	result.Trace = traceFrom(recorder.Events())

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep dispatches one step and waits for it to settle.
func executeStep(ctx context.Context, program demo.Program, step Step, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var opts []store.DispatchOption
	if step.Priority != "" {
		p, err := mainloop.ParsePriority(step.Priority)
		if err != nil {
			return err
		}
		opts = append(opts, store.WithPriority(p))
	}
	if step.AutoThreading {
		opts = append(opts, store.WithAutoThreading())
	}

	var err error
	switch {
	case step.Run != "":
		err = program.Run(step.Run, step.Args, opts...)
	case step.From == FromGoroutine:
		errc := make(chan error, 1)
		go func() { errc <- program.Send(step.Send, step.Args, opts...) }()
		err = <-errc
	default:
		var sendErr error
		err = program.Loop().Do(ctx, func() {
			sendErr = program.Send(step.Send, step.Args, opts...)
		})
		if err == nil {
			err = sendErr
		}
	}
	if err != nil {
		return err
	}

	if err := program.Settle(ctx); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	return nil
}

// traceFrom turns recorded events into a seq-ordered trace.
func traceFrom(events []observability.Event) []TraceEvent {
	slices.SortFunc(events, func(a, b observability.Event) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	trace := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		trace = append(trace, TraceEvent{
			Seq:         ev.Seq,
			Type:        ev.Type,
			ChainID:     ev.ChainID,
			Action:      dataString(ev.Data, "action"),
			AsyncAction: dataString(ev.Data, "async_action"),
			Effect:      dataString(ev.Data, "effect"),
		})
	}
	return trace
}

func dataString(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// toMap converts a state to its JSON object shape.
func toMap(state any) (map[string]any, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
