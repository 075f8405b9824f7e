package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden traces live, relative to the package or
// scenario directory.
const GoldenDir = "testdata/golden"

// Snapshot is the golden-file form of a scenario run.
type Snapshot struct {
	Scenario string           `json:"scenario"`
	Demo     string           `json:"demo"`
	States   []map[string]any `json:"states"`
	Trace    []TraceEvent     `json:"trace"`
}

// MarshalSnapshot renders a run deterministically: indented JSON, sorted
// map keys, no HTML escaping, trailing newline.
func MarshalSnapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snap := Snapshot{
		Scenario: scenario.Name,
		Demo:     scenario.Demo,
		States:   result.States,
		Trace:    result.Trace,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}

// GoldenPath returns the golden file of a scenario under dir.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, GoldenDir, name+".golden")
}

// WriteGolden writes the snapshot of result to its golden file under dir.
func WriteGolden(dir string, scenario *Scenario, result *Result) error {
	data, err := MarshalSnapshot(scenario, result)
	if err != nil {
		return err
	}

	path := GoldenPath(dir, scenario.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether result matches its golden file under dir.
// A missing golden file is reported as os.ErrNotExist.
func CompareGolden(dir string, scenario *Scenario, result *Result) (bool, error) {
	want, err := os.ReadFile(GoldenPath(dir, scenario.Name))
	if err != nil {
		return false, err
	}
	got, err := MarshalSnapshot(scenario, result)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}
