package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/observability"
	"github.com/seonyeopkim/asyncaction/store"
)

// AssertionError is returned when an assertion fails. It carries the
// reductions of the trace for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	reductions := reductionsOf(e.Trace)
	if len(reductions) > 0 {
		fmt.Fprintf(&buf, "\nReductions:\n")
		for i, ev := range reductions {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", i+1, ev.ChainID, ev.Action, ev.Effect)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(result, a)
		case AssertStates:
			err = assertStates(result, a)
		case AssertEmissions:
			err = assertEmissions(result, a)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertEventCount:
			err = assertEventCount(result.Trace, a)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertFinalState checks that the final state contains the expected fields.
// Fields not named in expect are ignored.
func assertFinalState(result *Result, a Assertion) error {
	final := result.FinalState()
	if final == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("state with %v", a.Expect),
			Actual:   "no state recorded",
		}
	}

	expected, err := normalize(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}
	for _, key := range sortedKeys(a.Expect) {
		want := expected.(map[string]any)[key]
		got, ok := final[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, want),
				Actual:   fmt.Sprintf("field missing from %v", final),
				Trace:    result.Trace,
			}
		}
		if !reflect.DeepEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, want),
				Actual:   fmt.Sprintf("%v", got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertStates checks the whole deduplicated state trace.
func assertStates(result *Result, a Assertion) error {
	expected, err := normalize(a.States)
	if err != nil {
		return fmt.Errorf("states: %w", err)
	}
	actual, err := normalize(result.States)
	if err != nil {
		return fmt.Errorf("states: %w", err)
	}
	if !reflect.DeepEqual(expected, actual) {
		return &AssertionError{
			Type:     AssertStates,
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertEmissions(result *Result, a Assertion) error {
	if len(result.States) != a.Count {
		return &AssertionError{
			Type:     AssertEmissions,
			Expected: fmt.Sprintf("%d state emissions", a.Count),
			Actual:   fmt.Sprintf("%d emissions: %v", len(result.States), result.States),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceContains checks that the named action was reduced.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range reductionsOf(trace) {
		if sameAction(ev.Action, a.Action) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("reduction of %s", a.Action),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first reductions of the named actions
// appear in order. Other reductions may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	reductions := reductionsOf(trace)
	positions := make([]int, len(a.Actions))

	for i, want := range a.Actions {
		for j, ev := range reductions {
			if sameAction(ev.Action, want) {
				positions[i] = j + 1
				break
			}
		}
		if positions[i] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", want),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					a.Actions[i-1], positions[i-1], a.Actions[i], positions[i]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range reductionsOf(trace) {
		if sameAction(ev.Action, a.Action) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d reductions of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d reductions", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == observability.EventType(a.Event) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

func reductionsOf(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Type == store.EventReduce {
			out = append(out, ev)
		}
	}
	return out
}

// sameAction matches a traced action description such as "update(X)"
// against an action name such as "update".
func sameAction(traced, name string) bool {
	base, _, _ := strings.Cut(traced, "(")
	return demo.NormalizeName(base) == demo.NormalizeName(name)
}

// normalize round-trips v through JSON so values decoded from YAML or CUE
// compare equal to values decoded from state JSON.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
