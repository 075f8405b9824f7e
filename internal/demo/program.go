package demo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/seonyeopkim/asyncaction/mainloop"
	"github.com/seonyeopkim/asyncaction/store"
	"github.com/seonyeopkim/asyncaction/stream"
)

// Program drives a demo store by action name. It is what the scenario
// harness and the CLI talk to; they never see the store's type parameters.
type Program interface {
	// Name returns the demo name, e.g. "counter".
	Name() string
	// Send builds the named action and sends it.
	Send(name string, args Args, opts ...store.DispatchOption) error
	// Run builds the named async action and runs it.
	Run(name string, args Args, opts ...store.DispatchOption) error
	// State returns the current state.
	State() any
	// States returns the deduplicated whole-state stream.
	States() stream.Stream[any]
	// Settle waits for in-flight async work.
	Settle(ctx context.Context) error
	// Actions and AsyncActions list the accepted names.
	Actions() []string
	AsyncActions() []string
	// Loop returns the store's main loop.
	Loop() *mainloop.Loop
	// Store returns the underlying store, for callers that know its type.
	Store() any
	Close() error
}

// Config parameterizes the demos.
type Config struct {
	// Data is what the loader's simulated server returns.
	Data string `yaml:"data" json:"data"`
	// Delay is how long simulated async work takes.
	Delay time.Duration `yaml:"delay" json:"delay"`
	// Fail makes the simulated server fail.
	Fail bool `yaml:"fail" json:"fail"`
}

// DefaultData is the loader's data when Config.Data is empty.
const DefaultData = "This is data"

// ErrUnknownDemo is returned by Open for unknown demo names.
var ErrUnknownDemo = errors.New("unknown demo")

// Names lists the demos Open accepts.
func Names() []string {
	return []string{"counter", "loader"}
}

// Open creates the named demo.
func Open(name string, cfg Config, opts ...store.Option) (Program, error) {
	switch NormalizeName(name) {
	case "counter":
		return newProgram("counter", NewCounterStore(opts...), counterActions(), counterAsyncActions(cfg)), nil
	case "loader":
		data := cfg.Data
		if data == "" {
			data = DefaultData
		}
		fetch := SimulatedFetch(data, cfg.Delay, cfg.Fail)
		return newProgram("loader", NewLoaderStore(fetch, opts...), loaderActions(), loaderAsyncActions()), nil
	default:
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownDemo, name, Names())
	}
}

func counterActions() *Registry[CounterAction] {
	return NewRegistry[CounterAction]().
		Value("increase", Increase).
		Value("decrease", Decrease).
		Value("logCount", LogCount).
		Value("resetState", ResetState)
}

func counterAsyncActions(cfg Config) *Registry[IncreaseLater] {
	return NewRegistry[IncreaseLater]().
		Register("increaseLater", func(args Args) (IncreaseLater, error) {
			after := cfg.Delay
			if raw, ok := args["after"]; ok {
				d, err := time.ParseDuration(raw)
				if err != nil {
					return IncreaseLater{}, fmt.Errorf("action increaseLater: after: %w", err)
				}
				after = d
			}
			return IncreaseLater{After: after}, nil
		})
}

func loaderActions() *Registry[LoaderAction] {
	return NewRegistry[LoaderAction]().
		Value("requestData", RequestData{}).
		Register("update", func(args Args) (LoaderAction, error) {
			data, ok := args["data"]
			if !ok {
				return nil, &MissingArgError{Action: "update", Arg: "data"}
			}
			return Update{Data: data}, nil
		}).
		Register("failed", func(args Args) (LoaderAction, error) {
			if reason, ok := args["reason"]; ok {
				return Failed{Err: errors.New(reason)}, nil
			}
			return Failed{Err: ErrFailedToLoadData}, nil
		})
}

func loaderAsyncActions() *Registry[LoaderAsync] {
	return NewRegistry[LoaderAsync]().
		Value("loadDataFromServer", LoadDataFromServer{})
}

type program[S, A, AA any] struct {
	name    string
	store   *store.Store[S, A, AA]
	actions *Registry[A]
	async   *Registry[AA]
}

func newProgram[S, A, AA any](name string, s *store.Store[S, A, AA], actions *Registry[A], async *Registry[AA]) *program[S, A, AA] {
	return &program[S, A, AA]{name: name, store: s, actions: actions, async: async}
}

func (p *program[S, A, AA]) Name() string { return p.name }

func (p *program[S, A, AA]) Send(name string, args Args, opts ...store.DispatchOption) error {
	action, err := p.actions.Build(name, args)
	if err != nil {
		return err
	}
	p.store.Send(action, opts...)
	return nil
}

func (p *program[S, A, AA]) Run(name string, args Args, opts ...store.DispatchOption) error {
	action, err := p.async.Build(name, args)
	if err != nil {
		return err
	}
	p.store.Run(action, opts...)
	return nil
}

func (p *program[S, A, AA]) State() any {
	return p.store.CurrentState()
}

func (p *program[S, A, AA]) States() stream.Stream[any] {
	return stream.Map(p.store.Stream(), func(s S) any { return s })
}

func (p *program[S, A, AA]) Settle(ctx context.Context) error {
	return p.store.Settle(ctx)
}

func (p *program[S, A, AA]) Actions() []string      { return slices.Clone(p.actions.names) }
func (p *program[S, A, AA]) AsyncActions() []string { return slices.Clone(p.async.names) }
func (p *program[S, A, AA]) Loop() *mainloop.Loop   { return p.store.Loop() }
func (p *program[S, A, AA]) Store() any             { return p.store }
func (p *program[S, A, AA]) Close() error           { return p.store.Close() }
