package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seonyeopkim/asyncaction/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  string
	}{
		{1, "TRACE"},
		{observability.LevelVerbose, "DEBUG"},
		{observability.LevelInfo, "INFO"},
		{observability.LevelWarning, "WARN"},
		{observability.LevelError, "ERROR"},
		{21, "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, observability.LevelVerbose.SlogLevel())
	assert.Equal(t, slog.LevelInfo, observability.LevelInfo.SlogLevel())
	assert.Equal(t, slog.LevelWarn, observability.LevelWarning.SlogLevel())
	assert.Equal(t, slog.LevelError, observability.LevelError.SlogLevel())
}

func TestSlogObserver_WritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := observability.NewSlogObserver(logger)

	obs.OnEvent(context.Background(), observability.Event{
		Type:    "store.warning.off_loop",
		Level:   observability.LevelWarning,
		Source:  "store",
		ChainID: "chain-1",
		Seq:     3,
		Data:    map[string]any{"action": "increase"},
	})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "store.warning.off_loop")
	assert.Contains(t, out, "chain_id=chain-1")
	assert.Contains(t, out, "seq=3")
	assert.Contains(t, out, "action=increase")
}

func TestSlogObserver_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	obs := observability.NewSlogObserver(logger)

	obs.OnEvent(context.Background(), observability.Event{Type: "store.reduce", Level: observability.LevelVerbose})
	assert.Empty(t, buf.String())
}

func TestMultiObserver_FansOut(t *testing.T) {
	a := observability.NewRecorder()
	b := observability.NewRecorder()
	multi := observability.NewMultiObserver(a, nil, b, observability.NoOpObserver{})

	multi.OnEvent(context.Background(), observability.Event{Type: "x"})

	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	assert.Equal(t, observability.EventType("x"), b.Events()[0].Type)
}

func TestRecorder_OfTypeAndReset(t *testing.T) {
	r := observability.NewRecorder()
	ctx := context.Background()
	r.OnEvent(ctx, observability.Event{Type: "a"})
	r.OnEvent(ctx, observability.Event{Type: "b"})
	r.OnEvent(ctx, observability.Event{Type: "a"})

	assert.Len(t, r.OfType("a"), 2)
	r.Reset()
	assert.Empty(t, r.Events())
}

func TestObserverFunc(t *testing.T) {
	var got observability.EventType
	var obs observability.Observer = observability.ObserverFunc(func(_ context.Context, e observability.Event) {
		got = e.Type
	})
	obs.OnEvent(context.Background(), observability.Event{Type: "fn"})
	assert.Equal(t, observability.EventType("fn"), got)
}

func TestDiscardLogger(t *testing.T) {
	logger := observability.DiscardLogger()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
	observability.NewSlogObserver(logger).OnEvent(context.Background(), observability.Event{Type: "x", Level: observability.LevelError})
}
