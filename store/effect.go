package store

import (
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// EffectKind identifies the variant of an Effect.
type EffectKind uint8

const (
	// EffectNone ends the chain.
	EffectNone EffectKind = iota
	// EffectReduce requests another synchronous reduction.
	EffectReduce
	// EffectRun requests a detached asynchronous task.
	EffectRun
)

func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectReduce:
		return "reduceState"
	case EffectRun:
		return "run"
	default:
		return fmt.Sprintf("effect(%d)", uint8(k))
	}
}

// Effect describes the follow-up work requested by a reduction step or an
// async task. It is a closed three-variant value; build it with None, Reduce
// and Run (or the Effects helper inside a reducer).
//
// The zero Effect is None.
type Effect[A, AA any] struct {
	kind        EffectKind
	action      A
	async       AA
	priority    Priority
	hasPriority bool
}

// None returns the terminal effect.
func None[A, AA any]() Effect[A, AA] {
	return Effect[A, AA]{}
}

// Reduce returns an effect requesting an immediate reduction of action.
func Reduce[A, AA any](action A) Effect[A, AA] {
	return Effect[A, AA]{kind: EffectReduce, action: action}
}

// Run returns an effect requesting a detached task for action. Without a
// priority the task inherits the priority of the chain that produced it.
func Run[A, AA any](action AA, priority ...Priority) Effect[A, AA] {
	fx := Effect[A, AA]{kind: EffectRun, async: action}
	if len(priority) > 0 {
		fx.priority = priority[0]
		fx.hasPriority = true
	}
	return fx
}

// Kind returns the variant.
func (e Effect[A, AA]) Kind() EffectKind {
	return e.kind
}

// Action returns the action of a Reduce effect.
func (e Effect[A, AA]) Action() (A, bool) {
	return e.action, e.kind == EffectReduce
}

// AsyncAction returns the async action of a Run effect.
func (e Effect[A, AA]) AsyncAction() (AA, bool) {
	return e.async, e.kind == EffectRun
}

// Priority returns the explicit priority of a Run effect, if any.
func (e Effect[A, AA]) Priority() (Priority, bool) {
	return e.priority, e.kind == EffectRun && e.hasPriority
}

// IsNone reports whether the effect ends the chain.
func (e Effect[A, AA]) IsNone() bool {
	return e.kind == EffectNone
}

// Equal compares effects structurally: same variant and equal payload.
// Intended for tests.
func (e Effect[A, AA]) Equal(other Effect[A, AA]) bool {
	if e.kind != other.kind {
		return false
	}
	switch e.kind {
	case EffectReduce:
		return equalValues(e.action, other.action)
	case EffectRun:
		return e.hasPriority == other.hasPriority &&
			e.priority == other.priority &&
			equalValues(e.async, other.async)
	default:
		return true
	}
}

func (e Effect[A, AA]) String() string {
	switch e.kind {
	case EffectReduce:
		return fmt.Sprintf("reduceState(%s)", describe(e.action))
	case EffectRun:
		if e.hasPriority {
			return fmt.Sprintf("run(%s, %s)", describe(e.async), e.priority)
		}
		return fmt.Sprintf("run(%s)", describe(e.async))
	default:
		return "none"
	}
}

// Effects builds effects with the type parameters fixed, which keeps reducer
// code free of explicit instantiations:
//
//	var fx store.Effects[Action, AsyncAction]
//	return fx.Run(LoadDataFromServer{})
type Effects[A, AA any] struct{}

func (Effects[A, AA]) None() Effect[A, AA] { return None[A, AA]() }

func (Effects[A, AA]) Reduce(action A) Effect[A, AA] { return Reduce[A, AA](action) }

func (Effects[A, AA]) Run(action AA, priority ...Priority) Effect[A, AA] {
	return Run[A](action, priority...)
}

// cmpOptions lets go-cmp look into unexported fields of application types.
var cmpOptions = []cmp.Option{
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

func equalValues[T any](a, b T) bool {
	return cmp.Equal(a, b, cmpOptions...)
}

// describe renders a value for diagnostics.
func describe(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Struct:
		if reflect.TypeOf(v).NumField() == 0 {
			return reflect.TypeOf(v).Name()
		}
		return fmt.Sprintf("%T%+v", v, v)
	case reflect.Invalid:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", v)
	}
}
