package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seonyeopkim/asyncaction/observability"
)

// Entry is a journalled event.
type Entry struct {
	ID    int64
	RunID string
	observability.Event
}

// Filter narrows ReadRun. Zero fields match everything.
type Filter struct {
	ChainID  string
	Type     observability.EventType
	MinLevel observability.Level
}

// Runs returns every run, most recent first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, demo, label, started_at
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRunInfo returns one run. Returns ErrRunNotFound for unknown IDs.
func (j *Journal) ReadRunInfo(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, demo, label, started_at
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (j *Journal) LatestRun(ctx context.Context) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, demo, label, started_at
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// ReadRun returns the events of a run matching filter, ordered by seq, then
// insertion order. Returns an empty slice, not nil, when nothing matches.
func (j *Journal) ReadRun(ctx context.Context, runID string, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, run_id, seq, chain_id, type, level, source, ts, data
		FROM events
		WHERE run_id = ?`
	args := []any{runID}

	if filter.ChainID != "" {
		query += ` AND chain_id = ?`
		args = append(args, filter.ChainID)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.MinLevel > 0 {
		query += ` AND level >= ?`
		args = append(args, int(filter.MinLevel))
	}
	query += `
		ORDER BY seq ASC, id ASC`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// CountByType returns the number of events of each type in a run.
func (j *Journal) CountByType(ctx context.Context, runID string) (map[observability.EventType]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT type, COUNT(*)
		FROM events
		WHERE run_id = ?
		GROUP BY type
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[observability.EventType]int)
	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[observability.EventType(typ)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run     Run
		started string
	)
	if err := row.Scan(&run.ID, &run.Demo, &run.Label, &started); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse run %s started_at: %w", run.ID, err)
	}
	run.StartedAt = ts
	return run, nil
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry Entry
		typ   string
		level int
		ts    string
		data  string
	)
	err := row.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.Seq,
		&entry.ChainID,
		&typ,
		&level,
		&entry.Source,
		&ts,
		&data,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan event: %w", err)
	}

	entry.Type = observability.EventType(typ)
	entry.Level = observability.Level(level)

	entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Entry{}, fmt.Errorf("parse event %d timestamp: %w", entry.ID, err)
	}

	if data != "" && data != "{}" {
		if err := json.Unmarshal([]byte(data), &entry.Data); err != nil {
			return Entry{}, fmt.Errorf("unmarshal event %d data: %w", entry.ID, err)
		}
	}
	return entry, nil
}
