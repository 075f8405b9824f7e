package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seonyeopkim/asyncaction/internal/journal"
	"github.com/seonyeopkim/asyncaction/observability"
	"github.com/seonyeopkim/asyncaction/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	List     bool
	ChainID  string
	Type     string
	MinLevel string
}

// TraceEvent is a single event in the trace timeline.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Level   string         `json:"level"`
	ChainID string         `json:"chain_id,omitempty"`
	Time    time.Time      `json:"time"`
	Data    map[string]any `json:"data,omitempty"`
}

// TraceChain summarizes one chain of the run.
type TraceChain struct {
	ChainID  string `json:"chain_id"`
	Origin   string `json:"origin"`
	Steps    int    `json:"steps"`
	Warnings int    `json:"warnings"`
	Errors   int    `json:"errors"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID     string       `json:"run_id"`
	Demo      string       `json:"demo"`
	Label     string       `json:"label,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	Timeline  []TraceEvent `json:"timeline"`
	Chains    []TraceChain `json:"chains"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	TotalEvents int                             `json:"total_events"`
	ByType      map[observability.EventType]int `json:"by_type"`
}

// RunSummary is one line of trace --list.
type RunSummary struct {
	ID        string    `json:"id"`
	Demo      string    `json:"demo"`
	Label     string    `json:"label,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show the journalled chains of a run",
		Long: `Show the dispatch journal of a run: every reduction, async task
and threading warning, in order, grouped by chain.

Without a run ID the most recent run is shown.

Examples:
  asyncaction trace --list
  asyncaction trace
  asyncaction trace 0192f3c4-... --chain 0192f3c4-...
  asyncaction trace --type store.reduce --format json
  asyncaction trace --level warn`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "list runs instead of tracing one")
	cmd.Flags().StringVar(&opts.ChainID, "chain", "", "only events of this chain")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only events of this type")
	cmd.Flags().StringVar(&opts.MinLevel, "level", "", "minimum level (debug|info|warn|error)")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	minLevel, err := parseLevel(opts.MinLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --level", err)
	}

	j, err := openJournalForRead(opts.settings().Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	if opts.List {
		return listRuns(ctx, out, j)
	}

	var run journal.Run
	if runID == "" {
		run, err = j.LatestRun(ctx)
	} else {
		run, err = j.ReadRunInfo(ctx, runID)
	}
	if errors.Is(err, journal.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	entries, err := j.ReadRun(ctx, run.ID, journal.Filter{
		ChainID:  opts.ChainID,
		Type:     observability.EventType(opts.Type),
		MinLevel: minLevel,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	byType, err := j.CountByType(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}

	result := TraceResult{
		RunID:     run.ID,
		Demo:      run.Demo,
		Label:     run.Label,
		StartedAt: run.StartedAt,
		Timeline:  buildTimeline(entries),
		Chains:    buildChains(entries),
		Stats:     TraceStats{TotalEvents: len(entries), ByType: byType},
	}

	if out.JSON() {
		return out.Success(result)
	}
	return outputTraceText(out.Writer, result, opts.Verbose)
}

// openJournalForRead opens an existing journal. Unlike journal.Open it
// refuses to create a new database.
func openJournalForRead(path string) (*journal.Journal, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no journal configured (use --db)")
	}
	if !fileExists(path) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func listRuns(ctx context.Context, out *OutputFormatter, j *journal.Journal) error {
	runs, err := j.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = RunSummary{ID: r.ID, Demo: r.Demo, Label: r.Label, StartedAt: r.StartedAt}
	}
	if out.JSON() {
		return out.Success(summaries)
	}

	if len(summaries) == 0 {
		out.Printf("No runs recorded.\n")
		return nil
	}
	for _, r := range summaries {
		out.Printf("%s  %-8s %-8s %s\n", r.ID, r.Demo, r.Label, r.StartedAt.Local().Format(time.DateTime))
	}
	return nil
}

// buildTimeline converts journal entries to timeline events.
func buildTimeline(entries []journal.Entry) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		timeline = append(timeline, TraceEvent{
			Seq:     e.Seq,
			Type:    string(e.Type),
			Level:   e.Level.String(),
			ChainID: e.ChainID,
			Time:    e.Timestamp,
			Data:    e.Data,
		})
	}
	return timeline
}

// buildChains groups entries by chain, in order of first appearance. The
// origin of a chain is the action or async action of its first event.
func buildChains(entries []journal.Entry) []TraceChain {
	var chains []TraceChain
	index := map[string]int{}

	for _, e := range entries {
		if e.ChainID == "" {
			continue
		}
		i, ok := index[e.ChainID]
		if !ok {
			i = len(chains)
			index[e.ChainID] = i
			chains = append(chains, TraceChain{ChainID: e.ChainID, Origin: originOf(e)})
		}

		c := &chains[i]
		switch {
		case e.Level >= observability.LevelError:
			c.Errors++
		case e.Level >= observability.LevelWarning:
			c.Warnings++
		}
		if e.Type == store.EventReduce {
			c.Steps++
		}
	}
	return chains
}

func originOf(e journal.Entry) string {
	if a, ok := e.Data["action"].(string); ok {
		return a
	}
	if a, ok := e.Data["async_action"].(string); ok {
		return "run:" + a
	}
	return string(e.Type)
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Demo: %s", result.Demo)
	if result.Label != "" {
		fmt.Fprintf(w, " (%s)", result.Label)
	}
	fmt.Fprintf(w, "\nStarted: %s\n\n", result.StartedAt.Local().Format(time.DateTime))

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Chains ===")
	if len(result.Chains) == 0 {
		fmt.Fprintln(w, "  (no chains)")
	}
	for _, c := range result.Chains {
		fmt.Fprintf(w, "  %s %-24s steps=%d", truncateID(c.ChainID), c.Origin, c.Steps)
		if c.Warnings > 0 {
			fmt.Fprintf(w, " warnings=%d", c.Warnings)
		}
		if c.Errors > 0 {
			fmt.Fprintf(w, " errors=%d", c.Errors)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	for _, typ := range sortedEventTypes(result.Stats.ByType) {
		fmt.Fprintf(w, "  %-28s %d\n", typ, result.Stats.ByType[typ])
	}
	return nil
}

// formatTimelineEvent writes one event: the action and effect of
// reductions, the async action of task events, everything else as data.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %-5s %s", ev.Seq, ev.Level, ev.Type)
	switch {
	case ev.Data["action"] != nil && ev.Data["effect"] != nil:
		fmt.Fprintf(w, " %v -> %v", ev.Data["action"], ev.Data["effect"])
	case ev.Data["async_action"] != nil:
		fmt.Fprintf(w, " %v", ev.Data["async_action"])
		if effect, ok := ev.Data["effect"]; ok {
			fmt.Fprintf(w, " -> %v", effect)
		}
	case len(ev.Data) > 0:
		fmt.Fprintf(w, " %s", formatData(ev.Data))
	}
	fmt.Fprintln(w)

	if verbose {
		fmt.Fprintf(w, "       chain: %s\n", ev.ChainID)
		if len(ev.Data) > 0 {
			fmt.Fprintf(w, "       data:  %s\n", formatData(ev.Data))
		}
	}
}

// formatData formats event data with sorted keys.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(data[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value, handling nested structures
// deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatData(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID shortens UUIDs for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

func sortedEventTypes(counts map[observability.EventType]int) []observability.EventType {
	types := make([]observability.EventType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// countEvents reopens the journal at path and counts the events of a run.
func countEvents(ctx context.Context, path, runID string) (map[observability.EventType]int, error) {
	j, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	defer j.Close()
	return j.CountByType(ctx, runID)
}

// parseLevel maps a level name to the lowest observability level it covers.
func parseLevel(name string) (observability.Level, error) {
	switch strings.ToLower(name) {
	case "":
		return 0, nil
	case "debug", "verbose":
		return observability.LevelVerbose, nil
	case "info":
		return observability.LevelInfo, nil
	case "warn", "warning":
		return observability.LevelWarning, nil
	case "error":
		return observability.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", name)
	}
}
