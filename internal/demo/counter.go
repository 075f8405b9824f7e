package demo

import (
	"context"
	"strconv"
	"time"

	"github.com/seonyeopkim/asyncaction/store"
)

// CounterState is the state of the counter demo. Log records the count each
// time LogCount is sent; every write counts, even when the value repeats.
type CounterState struct {
	Count int                            `yaml:"count" json:"count"`
	Log   store.AllowDuplicates[*string] `yaml:"log" json:"log"`
}

// CounterAction is a synchronous counter action.
type CounterAction int

const (
	Increase CounterAction = iota
	Decrease
	LogCount
	ResetState
)

func (a CounterAction) String() string {
	switch a {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	case LogCount:
		return "logCount"
	case ResetState:
		return "resetState"
	default:
		return "counterAction(" + strconv.Itoa(int(a)) + ")"
	}
}

// IncreaseLater is the counter's async action: wait, then increase.
type IncreaseLater struct {
	After time.Duration
}

// Counter reduces CounterState.
type Counter struct{}

var counterFx store.Effects[CounterAction, IncreaseLater]

func (Counter) Reduce(state *CounterState, action CounterAction) store.Effect[CounterAction, IncreaseLater] {
	switch action {
	case Increase:
		state.Count++
	case Decrease:
		state.Count--
	case LogCount:
		entry := strconv.Itoa(state.Count)
		state.Log.Set(&entry)
	case ResetState:
		*state = CounterState{}
	}
	return counterFx.None()
}

func (Counter) Run(ctx context.Context, action IncreaseLater) store.Effect[CounterAction, IncreaseLater] {
	if !sleep(ctx, action.After) {
		return counterFx.None()
	}
	return counterFx.Reduce(Increase)
}

// NewCounterStore creates a counter store at zero.
func NewCounterStore(opts ...store.Option) *store.Store[CounterState, CounterAction, IncreaseLater] {
	return store.New(store.Reducer[CounterState, CounterAction, IncreaseLater](Counter{}), &CounterState{}, opts...)
}

// LogValue returns the last logged entry, or "" when nothing was logged.
func (s CounterState) LogValue() string {
	if v := s.Log.Get(); v != nil {
		return *v
	}
	return ""
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
