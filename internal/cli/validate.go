package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/internal/harness"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// FileValidation is the result for one scenario file.
type FileValidation struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>...",
		Short: "Validate scenario files without running them",
		Long: `Validate YAML and CUE scenario files without running them.

Checks the file structure and every step: the demo must exist and each
step must name an action that demo accepts.

Examples:
  asyncaction validate ./testdata/scenarios
  asyncaction validate counter_history.yaml loader_failure.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	files, err := expandScenarioPaths(paths)
	if err != nil {
		return err
	}
	out.VerboseLog("Found %d scenario file(s)", len(files))

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, path := range files {
		fv := validateScenarioFile(path)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if out.JSON() {
		if !result.Valid {
			if err := out.Failure(result, "E_INVALID", "one or more scenarios are invalid"); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "validation failed")
		}
		return out.Success(result)
	}

	for _, fv := range result.Files {
		if fv.Valid {
			out.Printf("✓ %s\n", fv.Path)
			continue
		}
		out.Printf("✗ %s\n", fv.Path)
		for _, e := range fv.Errors {
			out.Printf("  %s\n", e)
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	out.Printf("✓ All scenarios valid\n")
	return nil
}

// validateScenarioFile loads a scenario and checks its demo and action names.
func validateScenarioFile(path string) FileValidation {
	fv := FileValidation{Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		fv.Errors = splitErrors(err)
		return fv
	}

	program, err := demo.Open(scenario.Demo, demo.Config{})
	if err != nil {
		fv.Errors = []string{err.Error()}
		return fv
	}
	defer program.Close()

	actions := normalizedSet(program.Actions())
	async := normalizedSet(program.AsyncActions())
	for i, step := range scenario.Steps {
		switch {
		case step.Send != "" && !actions[demo.NormalizeName(step.Send)]:
			fv.Errors = append(fv.Errors, fmt.Sprintf("steps[%d]: %s has no action %q", i, scenario.Demo, step.Send))
		case step.Run != "" && !async[demo.NormalizeName(step.Run)]:
			fv.Errors = append(fv.Errors, fmt.Sprintf("steps[%d]: %s has no async action %q", i, scenario.Demo, step.Run))
		}
	}

	fv.Valid = len(fv.Errors) == 0
	return fv
}

// expandScenarioPaths replaces directories with the scenario files they contain.
func expandScenarioPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot read path", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := harness.FindScenarioFiles(p, "")
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, NewExitError(ExitCommandError, "no scenario files found")
	}
	return files, nil
}

func normalizedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[demo.NormalizeName(n)] = true
	}
	return set
}

// splitErrors flattens joined errors into one message per line.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, splitErrors(e)...)
		}
		return msgs
	}
	return strings.Split(err.Error(), "\n")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
