package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/store"
)

// RunOptions configure Run.
type RunOptions struct {
	Input     io.Reader
	Output    io.Writer
	AltScreen bool
	Dispatch  []store.DispatchOption
}

// Run drives program interactively until the user quits or ctx is done.
// It returns the last rendered state.
func Run(ctx context.Context, program demo.Program, opts RunOptions) (any, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	teaOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		teaOpts = append(teaOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		teaOpts = append(teaOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		teaOpts = append(teaOpts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(New(ctx, program, opts.Dispatch...), teaOpts...).Run()
	if err != nil {
		return nil, fmt.Errorf("run tui: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.State(), nil
	}
	return program.State(), nil
}
