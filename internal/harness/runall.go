package harness

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FileResult is the outcome of one scenario file.
type FileResult struct {
	Path     string
	Scenario *Scenario // nil when the file failed to load
	Result   *Result   // nil when loading or execution failed
	Err      error
}

// Pass reports whether the file loaded, ran and passed.
func (r FileResult) Pass() bool {
	return r.Err == nil && r.Result != nil && r.Result.Pass
}

// FindScenarioFiles returns the scenario files under dir, sorted. A non-empty
// filter is a glob matched against the file name without extension.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsScenarioFile(path) {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(d.Name(), filepath.Ext(path))
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return err
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// RunFiles loads and runs scenario files concurrently. Results come back in
// the order of paths; a failing file does not stop the others.
func RunFiles(ctx context.Context, paths []string, opts ...Option) []FileResult {
	results := make([]FileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			results[i] = runFile(ctx, path, opts...)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runFile(ctx context.Context, path string, opts ...Option) FileResult {
	fr := FileResult{Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Scenario = scenario

	result, err := Run(ctx, scenario, opts...)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Result = result
	return fr
}
