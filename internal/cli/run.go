package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/observability"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Timeout time.Duration
	Label   string
}

// RunResult is the outcome of a run.
type RunResult struct {
	Demo   string                          `json:"demo"`
	RunID  string                          `json:"run_id,omitempty"`
	Steps  []string                        `json:"steps"`
	States []json.RawMessage               `json:"states"`
	Final  json.RawMessage                 `json:"final"`
	Events map[observability.EventType]int `json:"events,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <demo> <step>...",
		Short: "Dispatch actions to a demo store",
		Long: `Dispatch a sequence of actions to a demo store and print every
distinct state it passes through.

Each step settles (every async task it starts finishes) before the next
one is dispatched. Steps are action names, optionally with arguments;
async actions are prefixed with "run:".

Demos: counter, loader

Examples:
  asyncaction run counter increase increase logCount
  asyncaction run counter run:increaseLater(after=100ms)
  asyncaction run loader requestData --db ./asyncaction.db
  asyncaction run loader "update(data=hello)" --format json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long one step may take to settle")
	cmd.Flags().StringVar(&opts.Label, "label", "cli", "journal run label")

	return cmd
}

func runDemo(opts *RunOptions, demoName string, rawSteps []string, cmd *cobra.Command) error {
	steps, err := ParseSteps(rawSteps)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid step", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	sess, err := opts.openSession(ctx, demoName, opts.Label, logger)
	if err != nil {
		return err
	}
	defer func() {
		if sess != nil {
			_ = sess.Close()
		}
	}()

	program := sess.program
	var (
		mu     sync.Mutex
		states []any
	)
	sub := program.States().Sink(func(s any) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	defer sub.Cancel()

	result := RunResult{Demo: program.Name(), RunID: sess.RunID(), Steps: make([]string, 0, len(steps))}

	for i, step := range steps {
		out.VerboseLog("step %d: %s", i+1, step)
		if err := dispatchStep(ctx, sess, step, opts.Timeout); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("step %d (%s) failed", i+1, step), err)
		}
		result.Steps = append(result.Steps, step.String())
	}

	flushCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := sub.Flush(flushCtx); err != nil {
		return WrapExitError(ExitFailure, "state stream did not drain", err)
	}

	mu.Lock()
	for _, s := range states {
		raw, err := json.Marshal(s)
		if err != nil {
			mu.Unlock()
			return WrapExitError(ExitFailure, "failed to encode state", err)
		}
		result.States = append(result.States, raw)
	}
	mu.Unlock()
	if result.Final, err = json.Marshal(program.State()); err != nil {
		return WrapExitError(ExitFailure, "failed to encode state", err)
	}

	closing := sess
	sess = nil
	if err := closing.Close(); err != nil {
		return err
	}
	if result.RunID != "" {
		result.Events, err = countEvents(ctx, opts.settings().Journal.Path, result.RunID)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read journal", err)
		}
	}

	if out.JSON() {
		return out.Success(result)
	}
	return outputRunText(out, result)
}

// dispatchStep sends or runs one step and waits for it to settle.
func dispatchStep(ctx context.Context, sess *session, step Step, timeout time.Duration) error {
	var err error
	if step.Async {
		err = sess.program.Run(step.Name, step.Args, sess.dispatch...)
	} else {
		err = sess.program.Send(step.Name, step.Args, sess.dispatch...)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sess.program.Settle(ctx)
}

func outputRunText(out *OutputFormatter, result RunResult) error {
	out.Printf("Demo: %s\n", result.Demo)
	if result.RunID != "" {
		out.Printf("Run:  %s\n", result.RunID)
	}
	out.Printf("\n=== States ===\n")
	for i, s := range result.States {
		out.Printf("  [%d] %s\n", i, s)
	}
	out.Printf("\nFinal: %s\n", result.Final)

	if len(result.Events) > 0 {
		out.Printf("\n=== Events ===\n")
		for _, typ := range sortedEventTypes(result.Events) {
			out.Printf("  %-28s %d\n", typ, result.Events[typ])
		}
	}
	return nil
}

// demoNames is used in help and error text.
func demoNames() []string {
	return demo.Names()
}
