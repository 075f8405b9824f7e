package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seonyeopkim/asyncaction/internal/tui"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	AltScreen bool
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo <name>",
		Short: "Drive a demo store interactively",
		Long: fmt.Sprintf(`Open a terminal UI on a demo store.

Key presses dispatch actions; the view re-renders on every distinct state
the store publishes. The session is journalled like "run".

Demos: %v

Examples:
  asyncaction demo counter
  asyncaction demo loader --db ./asyncaction.db`, demoNames()),
		Args:          cobra.ExactArgs(1),
		ValidArgs:     demoNames(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AltScreen, "alt-screen", false, "use the terminal's alternate screen")

	return cmd
}

func runInteractive(opts *DemoOptions, demoName string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// The UI owns stdout; diagnostics go to stderr.
	sess, err := opts.openSession(ctx, demoName, "tui", opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	final, runErr := tui.Run(ctx, sess.program, tui.RunOptions{
		Input:     cmd.InOrStdin(),
		Output:    cmd.OutOrStdout(),
		AltScreen: opts.AltScreen,
		Dispatch:  sess.dispatch,
	})
	runID := sess.RunID()
	if err := sess.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "demo failed", runErr)
	}

	raw, err := json.Marshal(final)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode state", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(map[string]any{"demo": demoName, "run_id": runID, "final": json.RawMessage(raw)})
	}
	out.Printf("Final: %s\n", raw)
	if runID != "" {
		out.Printf("Run:   %s (asyncaction trace %s)\n", runID, runID)
	}
	return nil
}
