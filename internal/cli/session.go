package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/internal/journal"
	"github.com/seonyeopkim/asyncaction/store"
)

// session is a demo program wired to the configured journal.
type session struct {
	program  demo.Program
	journal  *journal.Journal
	observer *journal.RunObserver
	run      journal.Run
	dispatch []store.DispatchOption
}

// openSession opens the named demo with the store options of the loaded
// config. When the journal is enabled every store event is recorded under
// a new run labelled label.
func (o *RootOptions) openSession(ctx context.Context, demoName, label string, logger *slog.Logger) (*session, error) {
	cfg := o.settings()

	demoCfg, err := cfg.DemoConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid demo config", err)
	}
	dispatch, err := cfg.DispatchOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid store config", err)
	}

	s := &session{dispatch: dispatch}
	storeOpts := append([]store.Option{store.WithLogger(logger)}, cfg.StoreOptions()...)

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		run, err := j.BeginRun(ctx, journal.Run{Demo: demo.NormalizeName(demoName), Label: label})
		if err != nil {
			_ = j.Close()
			return nil, WrapExitError(ExitCommandError, "failed to begin run", err)
		}
		s.journal, s.run = j, run
		s.observer = j.Observer(run.ID)
		storeOpts = append(storeOpts, store.WithObserver(s.observer))
	}

	program, err := demo.Open(demoName, demoCfg, storeOpts...)
	if err != nil {
		s.closeJournal()
		if errors.Is(err, demo.ErrUnknownDemo) {
			return nil, WrapExitError(ExitCommandError, "failed to open demo", err)
		}
		return nil, err
	}
	s.program = program
	return s, nil
}

// RunID returns the journal run, or "" without a journal.
func (s *session) RunID() string {
	return s.run.ID
}

// Close shuts the program down, then reports journal write failures.
func (s *session) Close() error {
	var errs []error
	if s.program != nil {
		errs = append(errs, s.program.Close())
	}
	if s.observer != nil {
		if err := s.observer.Err(); err != nil {
			errs = append(errs, WrapExitError(ExitFailure, "journal incomplete", err))
		}
	}
	errs = append(errs, s.closeJournal())
	return errors.Join(errs...)
}

func (s *session) closeJournal() error {
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	if err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}
