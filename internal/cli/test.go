package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/seonyeopkim/asyncaction/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update     bool   // regenerate golden files
	Filter     string // scenario filter (glob pattern)
	GoldenRoot string // directory holding testdata/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against the demo stores",
		Long: `Run YAML and CUE scenarios against the demo stores.

Each scenario dispatches its steps through a real store, records the
deduplicated state trace and the event trace, and checks its assertions.
With --golden the snapshot is also compared against
<golden>/testdata/golden/<scenario>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  asyncaction test ./internal/harness/testdata/scenarios
  asyncaction test ./scenarios --filter "loader_*"
  asyncaction test ./internal/harness/testdata/scenarios --golden ./internal/harness
  asyncaction test ./internal/harness/testdata/scenarios --golden ./internal/harness --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenRoot, "golden", "", "directory containing testdata/golden")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if opts.Update && opts.GoldenRoot == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}
	if !fileExists(scenariosDir) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := harness.FindScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	out := opts.formatter(cmd)
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}

	if len(files) == 0 {
		if out.JSON() {
			return out.Success(result)
		}
		out.Printf("No scenarios found.\n")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger(cmd.ErrOrStderr())

	for _, fr := range harness.RunFiles(ctx, files, harness.WithLogger(logger)) {
		sr := opts.scenarioResult(fr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
		printScenarioResult(out, sr)
	}

	if out.JSON() {
		if result.Failed > 0 {
			msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
			if err := out.Failure(result, "E_TEST_FAILED", msg); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return out.Success(result)
	}

	out.Printf("\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	out.Printf("✓ All scenarios passed\n")
	return nil
}

// scenarioResult turns a harness file result into a ScenarioResult,
// comparing or updating the golden file when configured.
func (opts *TestOptions) scenarioResult(fr harness.FileResult) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(fr.Path), File: fr.Path}

	if fr.Scenario == nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", fr.Err)}
		return sr
	}
	sr.Name = fr.Scenario.Name
	if fr.Err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", fr.Err)}
		return sr
	}

	sr.Pass = fr.Result.Pass
	sr.Errors = fr.Result.Errors

	if opts.GoldenRoot == "" {
		return sr
	}

	if opts.Update {
		if err := harness.WriteGolden(opts.GoldenRoot, fr.Scenario, fr.Result); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return sr
		}
		sr.Golden = "updated"
		return sr
	}

	match, err := harness.CompareGolden(opts.GoldenRoot, fr.Scenario, fr.Result)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Assertions alone decide.
		sr.Golden = "missing"
	case err != nil:
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
	case !match:
		sr.Pass = false
		sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
	default:
		sr.Golden = "match"
	}
	return sr
}

func printScenarioResult(out *OutputFormatter, sr ScenarioResult) {
	mark := "✓"
	if !sr.Pass {
		mark = "✗"
	}
	suffix := ""
	if sr.Golden == "updated" {
		suffix = " (golden updated)"
	}
	out.Printf("%s %s%s\n", mark, sr.Name, suffix)
	if !sr.Pass {
		for _, e := range sr.Errors {
			out.Printf("  %s\n", e)
		}
	}
}
