package store

import (
	"context"

	"github.com/seonyeopkim/asyncaction/observability"
)

// Test applies one action with a single Reduce call and hands the resulting
// state and the returned effect to check. The effect is not executed.
//
// Test bypasses dispatch entirely: no threading checks, no diagnostics, no
// follow-up reductions. Subscribers still see the new state.
//
// On a closed store the action is dropped and check sees the current state
// with a None effect.
func (s *Store[S, A, AA]) Test(action A, check func(state S, effect Effect[A, AA])) {
	s.mu.Lock()
	var (
		fx   Effect[A, AA]
		snap S
	)
	if s.ctx.Err() != nil {
		snap = s.clone(s.state)
		s.emit(context.WithoutCancel(s.ctx), EventDropped, observability.LevelInfo, "", map[string]any{
			"action": describe(action),
			"reason": "store closed",
		})
	} else {
		fx = s.reducer.Reduce(s.state, action)
		snap = s.publishLocked()
	}
	s.mu.Unlock()

	if check != nil {
		check(snap, fx)
	}
}

// TestAsync calls Reducer.Run once and hands the returned effect to check.
// The effect is not executed and the state is untouched.
func (s *Store[S, A, AA]) TestAsync(ctx context.Context, action AA, check func(effect Effect[A, AA])) {
	fx := s.reducer.Run(ctx, action)
	if check != nil {
		check(fx)
	}
}

// SendAndSettle dispatches action on the main loop, waits until the whole
// chain, async tasks included, has settled and returns the final state.
func (s *Store[S, A, AA]) SendAndSettle(ctx context.Context, action A, opts ...DispatchOption) (S, error) {
	if err := s.loop.Do(ctx, func() { s.Send(action, opts...) }); err != nil {
		var zero S
		return zero, err
	}
	if err := s.Settle(ctx); err != nil {
		var zero S
		return zero, err
	}
	return s.CurrentState(), nil
}
