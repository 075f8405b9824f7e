package store

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/seonyeopkim/asyncaction/observability"
)

// Send dispatches a synchronous action.
//
// Without WithAutoThreading the chain runs on the calling goroutine and
// completes before Send returns; calling from off the main loop is allowed
// but reported as an EventOffLoop warning.
//
// With WithAutoThreading, a call made on the main loop behaves the same way
// without a warning. A call made elsewhere is posted to the loop at the
// requested priority and Send returns at once; the hop is reported as an
// EventAutoThreaded warning when the chain runs.
func (s *Store[S, A, AA]) Send(action A, opts ...DispatchOption) {
	cfg := newDispatchConfig(opts)
	chainID := s.chainIDs.NewChainID()

	onLoop := s.loop.OnLoop()
	if !cfg.autoThreading || onLoop {
		if !onLoop {
			s.emit(s.ctx, EventOffLoop, observability.LevelWarning, chainID, map[string]any{
				"action": describe(action),
			})
		}
		s.reduceChain(chainID, action, cfg.priority)
		return
	}

	s.tasks.add()
	posted := s.loop.Post(cfg.priority, func() {
		defer s.tasks.done()
		s.emit(s.ctx, EventAutoThreaded, observability.LevelWarning, chainID, map[string]any{
			"action":   describe(action),
			"priority": cfg.priority.String(),
		})
		s.reduceChain(chainID, action, cfg.priority)
	})
	if !posted {
		s.tasks.done()
		s.emit(context.WithoutCancel(s.ctx), EventDropped, observability.LevelInfo, chainID, map[string]any{
			"action": describe(action),
			"reason": "main loop stopped",
		})
	}
}

// Run starts a detached task for an async action, as if a reduction had
// returned Run(action). The task runs at the priority given with
// WithPriority, or at the default priority.
func (s *Store[S, A, AA]) Run(action AA, opts ...DispatchOption) {
	cfg := newDispatchConfig(opts)
	s.spawn(s.chainIDs.NewChainID(), action, cfg.priority)
}

// reduceChain applies action and every Reduce effect that follows it, then
// starts the task requested by a final Run effect, if any.
func (s *Store[S, A, AA]) reduceChain(chainID string, action A, p Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		s.emit(context.WithoutCancel(s.ctx), EventDropped, observability.LevelInfo, chainID, map[string]any{
			"action": describe(action),
			"reason": "store closed",
		})
		return
	}

	quota := newStepQuota(s.maxSteps)
	for {
		if err := quota.check(chainID); err != nil {
			s.emit(s.ctx, EventQuotaExceeded, observability.LevelError, chainID, map[string]any{
				"action": describe(action),
				"error":  err.Error(),
			})
			return
		}

		fx := s.reducer.Reduce(s.state, action)
		s.publishLocked()
		s.emit(s.ctx, EventReduce, observability.LevelVerbose, chainID, map[string]any{
			"action": describe(action),
			"effect": fx.String(),
			"step":   quota.current,
		})

		switch fx.Kind() {
		case EffectReduce:
			action = fx.action
		case EffectRun:
			next := p
			if fx.hasPriority {
				next = fx.priority
			}
			s.spawn(chainID, fx.async, next)
			return
		default:
			return
		}
	}
}

// spawn runs Reducer.Run on a new goroutine. A Reduce result is posted to the
// main loop at the task's priority; a Run result starts the next task.
func (s *Store[S, A, AA]) spawn(chainID string, action AA, p Priority) {
	s.tasks.add()
	go func() {
		defer s.tasks.done()

		ctx := taskContext(s.ctx, chainID, p)
		if err := s.tasks.acquire(ctx, p); err != nil {
			s.emit(context.WithoutCancel(ctx), EventDropped, observability.LevelInfo, chainID, map[string]any{
				"async_action": describe(action),
				"reason":       err.Error(),
			})
			return
		}
		fx := s.runTask(ctx, chainID, action, p)
		s.tasks.release()

		switch fx.Kind() {
		case EffectReduce:
			s.tasks.add()
			next := fx.action
			posted := s.loop.Post(p, func() {
				defer s.tasks.done()
				s.reduceChain(chainID, next, p)
			})
			if !posted {
				s.tasks.done()
				s.emit(context.WithoutCancel(ctx), EventDropped, observability.LevelInfo, chainID, map[string]any{
					"action": describe(next),
					"reason": "main loop stopped",
				})
			}
		case EffectRun:
			next := p
			if fx.hasPriority {
				next = fx.priority
			}
			s.spawn(chainID, fx.async, next)
		}
	}()
}

// runTask calls Reducer.Run, turning a panic into None.
func (s *Store[S, A, AA]) runTask(ctx context.Context, chainID string, action AA, p Priority) (fx Effect[A, AA]) {
	s.emit(ctx, EventRunStart, observability.LevelVerbose, chainID, map[string]any{
		"async_action": describe(action),
		"priority":     p.String(),
	})

	defer func() {
		if r := recover(); r != nil {
			fx = None[A, AA]()
			s.emit(ctx, EventRunPanic, observability.LevelError, chainID, map[string]any{
				"async_action": describe(action),
				"panic":        fmt.Sprint(r),
				"stack":        string(debug.Stack()),
			})
			return
		}
		s.emit(ctx, EventRunFinish, observability.LevelVerbose, chainID, map[string]any{
			"async_action": describe(action),
			"effect":       fx.String(),
		})
	}()

	return s.reducer.Run(ctx, action)
}
