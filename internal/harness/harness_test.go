package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seonyeopkim/asyncaction/observability"
	"github.com/seonyeopkim/asyncaction/store"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestRunWithGolden(t *testing.T) {
	for _, file := range []string{"counter_history.yaml", "loader_success.yaml"} {
		t.Run(file, func(t *testing.T) {
			scenario := loadTestScenario(t, file)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Scenarios(t *testing.T) {
	files, err := FindScenarioFiles(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, fr := range RunFiles(context.Background(), files) {
		t.Run(filepath.Base(fr.Path), func(t *testing.T) {
			require.NoError(t, fr.Err)
			assert.True(t, fr.Pass(), "%+v", fr.Result)
		})
	}
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectations",
		Description: "every assertion is off by one",
		Demo:        "counter",
		Steps:       []Step{{Send: "increase"}},
		Assertions: []Assertion{
			{Type: AssertFinalState, Expect: map[string]any{"count": 2}},
			{Type: AssertEmissions, Count: 1},
			{Type: AssertTraceCount, Action: "increase", Count: 2},
			{Type: AssertTraceContains, Action: "decrease"},
			{Type: AssertEventCount, Event: string(store.EventOffLoop), Count: 1},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], `field "count" = 2`)
	assert.Contains(t, result.Errors[3], "reduction of decrease")
	assert.Contains(t, result.Errors[3], "[1] chain-1 increase -> none", "failure lists the reductions")
}

func TestRun_UnknownActionIsExecutionError(t *testing.T) {
	scenario := &Scenario{
		Name:        "typo",
		Description: "misspelled action",
		Demo:        "counter",
		Steps:       []Step{{Send: "increse"}},
		Assertions:  []Assertion{{Type: AssertEmissions, Count: 1}},
	}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "increse"`)
}

func TestRun_UnknownDemo(t *testing.T) {
	scenario := &Scenario{Name: "x", Description: "x", Demo: "nope", Steps: []Step{{Send: "a"}}}
	_, err := Run(context.Background(), scenario)
	assert.Error(t, err)
}

func TestRun_ForwardsEventsToObservers(t *testing.T) {
	rec := observability.NewRecorder()
	scenario := loadTestScenario(t, "loader_success.yaml")

	_, err := Run(context.Background(), scenario, WithObserver(rec))
	require.NoError(t, err)

	assert.Len(t, rec.OfType(store.EventReduce), 2)
	assert.Len(t, rec.OfType(store.EventRunFinish), 1)
}

func TestRun_ChainPrefix(t *testing.T) {
	scenario := &Scenario{
		Name: "prefixed", Description: "custom chain IDs", Demo: "counter",
		ChainPrefix: "flow",
		Steps:       []Step{{Send: "increase"}},
		Assertions:  []Assertion{{Type: AssertEmissions, Count: 2}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "flow-1", result.Trace[0].ChainID)
}

func TestLoadScenario_CUE(t *testing.T) {
	scenario := loadTestScenario(t, "loader_failure.cue")

	assert.Equal(t, "loader_failure", scenario.Name)
	assert.True(t, scenario.Config.Fail)
	assert.Equal(t, "1ms", scenario.Config.Delay)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "requestData", scenario.Steps[0].Send)
	require.Len(t, scenario.Assertions, 3)
	assert.Equal(t, []string{"requestData", "failed"}, scenario.Assertions[1].Actions)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: a\ndescription: b\ndemo: counter\nstep: []\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing fields",
			content: "name: a\n",
			wantErr: "description is required",
		},
		{
			name: "send and run",
			content: `name: a
description: b
demo: counter
steps: [{send: increase, run: increaseLater}]
assertions: [{type: emissions, count: 1}]
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "bad priority",
			content: `name: a
description: b
demo: counter
steps: [{send: increase, priority: urgent}]
assertions: [{type: emissions, count: 1}]
`,
			wantErr: `unknown priority "urgent"`,
		},
		{
			name: "bad origin",
			content: `name: a
description: b
demo: counter
steps: [{send: increase, from: thread}]
assertions: [{type: emissions, count: 1}]
`,
			wantErr: "from must be",
		},
		{
			name: "bad delay",
			content: `name: a
description: b
demo: loader
config: {delay: soon}
steps: [{send: requestData}]
assertions: [{type: emissions, count: 1}]
`,
			wantErr: "config.delay",
		},
		{
			name: "unknown assertion",
			content: `name: a
description: b
demo: counter
steps: [{send: increase}]
assertions: [{type: vibes}]
`,
			wantErr: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindScenarioFiles_Filter(t *testing.T) {
	files, err := FindScenarioFiles(filepath.Join("testdata", "scenarios"), "loader_*")
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"loader_failure.cue", "loader_success.yaml"}, names)

	_, err = FindScenarioFiles(filepath.Join("testdata", "scenarios"), "[")
	assert.Error(t, err)
}

func TestGoldenFiles_WriteAndCompare(t *testing.T) {
	dir := t.TempDir()
	scenario := loadTestScenario(t, "counter_history.yaml")

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	_, err = CompareGolden(dir, scenario, result)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, WriteGolden(dir, scenario, result))
	same, err := CompareGolden(dir, scenario, result)
	require.NoError(t, err)
	assert.True(t, same)

	result.States = result.States[:1]
	same, err = CompareGolden(dir, scenario, result)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestSameAction(t *testing.T) {
	assert.True(t, sameAction("update(X)", "update"))
	assert.True(t, sameAction("logCount", "log_count"))
	assert.False(t, sameAction("increase", "decrease"))
}
