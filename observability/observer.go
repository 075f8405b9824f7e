// Package observability carries diagnostics out of the store: threading
// advisories, dispatch steps and async task lifecycle. Level values follow
// OpenTelemetry SeverityNumber ranges so events translate directly to OTel
// log records.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level represents event severity aligned with OTel SeverityNumber ranges.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8)
	LevelInfo    Level = 9  // OTel INFO (9-12)
	LevelWarning Level = 13 // OTel WARN (13-16)
	LevelError   Level = 17 // OTel ERROR (17-20)
)

// String returns the OTel severity text for the level.
func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps the level to the matching slog.Level.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names an event, e.g. "store.reduce" or "store.warning.off_loop".
type EventType string

// Event is a diagnostic emitted by the store.
//
// ChainID correlates every step that descends from one Send or Run call; Seq
// orders steps across chains.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	ChainID   string
	Seq       int64
	Data      map[string]any
}

// Observer receives events. Implementations must be safe for concurrent use:
// events arrive from the main loop and from async task goroutines.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}
