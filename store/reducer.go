package store

import "context"

// Reducer supplies the transitions of a store.
//
// S is the state type, owned by the store behind a pointer; A is the
// synchronous action type; AA is the asynchronous action type.
//
// Reduce must be synchronous, must not block, and must be deterministic for
// a given state and action. It mutates state in place and returns the next
// Effect. Reduce must not call back into the store; request further work
// with the returned Effect instead.
//
// Run may block (I/O, timers). It must not touch state: every state change
// caused by async work flows back through a returned Reduce effect, which the
// store applies on its main loop. Failures inside Run are translated into
// ordinary actions; there is no error channel. ctx is cancelled when the
// store is closed.
type Reducer[S, A, AA any] interface {
	Reduce(state *S, action A) Effect[A, AA]
	Run(ctx context.Context, action AA) Effect[A, AA]
}

// Funcs adapts plain functions to Reducer. A nil function returns None,
// which is convenient for reducers without async work (or without actions).
type Funcs[S, A, AA any] struct {
	ReduceFunc func(state *S, action A) Effect[A, AA]
	RunFunc    func(ctx context.Context, action AA) Effect[A, AA]
}

func (f Funcs[S, A, AA]) Reduce(state *S, action A) Effect[A, AA] {
	if f.ReduceFunc == nil {
		return None[A, AA]()
	}
	return f.ReduceFunc(state, action)
}

func (f Funcs[S, A, AA]) Run(ctx context.Context, action AA) Effect[A, AA] {
	if f.RunFunc == nil {
		return None[A, AA]()
	}
	return f.RunFunc(ctx, action)
}
