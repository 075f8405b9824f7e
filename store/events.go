package store

import (
	"context"
	"time"

	"github.com/seonyeopkim/asyncaction/observability"
)

// Event types emitted by a Store.
const (
	// EventReduce: one reduction step ran. Verbose.
	EventReduce observability.EventType = "store.reduce"
	// EventRunStart: an async task started running Reducer.Run. Verbose.
	EventRunStart observability.EventType = "store.run.start"
	// EventRunFinish: an async task returned its effect. Verbose.
	EventRunFinish observability.EventType = "store.run.finish"
	// EventRunPanic: Reducer.Run panicked; the chain ends. Error.
	EventRunPanic observability.EventType = "store.run.panic"
	// EventOffLoop: Send without auto-threading ran off the main loop. Warning.
	EventOffLoop observability.EventType = "store.warning.off_loop"
	// EventAutoThreaded: Send with auto-threading hopped onto the main loop. Warning.
	EventAutoThreaded observability.EventType = "store.warning.auto_threaded"
	// EventQuotaExceeded: a chain exceeded WithMaxSteps and was cut short. Error.
	EventQuotaExceeded observability.EventType = "store.chain.quota_exceeded"
	// EventDropped: work could not be scheduled because the store is closing. Info.
	EventDropped observability.EventType = "store.dispatch.dropped"
)

const eventSource = "store"

// emit stamps and forwards an event to the store's observers.
func (s *Store[S, A, AA]) emit(ctx context.Context, typ observability.EventType, level observability.Level, chainID string, data map[string]any) {
	s.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    eventSource,
		ChainID:   chainID,
		Seq:       s.clock.Next(),
		Data:      data,
	})
}
