package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seonyeopkim/asyncaction/observability"
)

// Run groups the events of one store session.
type Run struct {
	ID        string
	Demo      string
	Label     string
	StartedAt time.Time
}

// BeginRun registers a new run and returns it. An empty ID is replaced by a
// fresh UUIDv7; a zero StartedAt by the current time.
func (j *Journal) BeginRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.Must(uuid.NewV7()).String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, demo, label, started_at)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		run.Demo,
		run.Label,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// Write appends one event to a run.
func (j *Journal) Write(ctx context.Context, runID string, event observability.Event) error {
	data, err := marshalData(event.Data)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, chain_id, type, level, source, ts, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		event.Seq,
		event.ChainID,
		string(event.Type),
		int(event.Level),
		event.Source,
		ts.UTC().Format(time.RFC3339Nano),
		data,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// marshalData encodes event data as JSON with sorted keys and no HTML
// escaping, so identical data always produces identical text.
func marshalData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Observer returns an observability.Observer appending every event to run.
func (j *Journal) Observer(runID string) *RunObserver {
	return &RunObserver{journal: j, runID: runID}
}

// RunObserver writes store events into a journal run.
//
// Observers cannot return errors, so write failures are counted and the
// first one is kept for Err.
type RunObserver struct {
	journal *Journal
	runID   string

	mu       sync.Mutex
	firstErr error
	failed   int
}

// OnEvent implements observability.Observer.
func (o *RunObserver) OnEvent(ctx context.Context, event observability.Event) {
	// The store's context ends at Close; late events are still worth keeping.
	err := o.journal.Write(context.WithoutCancel(ctx), o.runID, event)
	if err == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
	if o.firstErr == nil {
		o.firstErr = err
	}
}

// Err returns the first write error, annotated with the number of failed
// writes, or nil.
func (o *RunObserver) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.firstErr == nil {
		return nil
	}
	return fmt.Errorf("%d journal writes failed, first: %w", o.failed, o.firstErr)
}

// RunID returns the run the observer writes to.
func (o *RunObserver) RunID() string {
	return o.runID
}
