package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/mainloop"
)

// Scenario is a scripted session against one demo store.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description" json:"description"`

	// Demo names the demo to open: "counter" or "loader".
	Demo string `yaml:"demo" json:"demo"`

	// Config parameterizes the demo (simulated data, delay, failure).
	Config Config `yaml:"config,omitempty" json:"config,omitempty"`

	// ChainPrefix prefixes generated chain IDs. Defaults to "chain".
	ChainPrefix string `yaml:"chain_prefix,omitempty" json:"chain_prefix,omitempty"`

	// Steps run in order; each settles before the next starts.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions validate the traces and final state.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// Config is the demo configuration as written in scenario files.
type Config struct {
	Data  string `yaml:"data,omitempty" json:"data,omitempty"`
	Delay string `yaml:"delay,omitempty" json:"delay,omitempty"`
	Fail  bool   `yaml:"fail,omitempty" json:"fail,omitempty"`
}

// Demo converts the scenario config to a demo.Config.
func (c Config) Demo() (demo.Config, error) {
	cfg := demo.Config{Data: c.Data, Fail: c.Fail}
	if c.Delay != "" {
		d, err := time.ParseDuration(c.Delay)
		if err != nil {
			return demo.Config{}, fmt.Errorf("config.delay: %w", err)
		}
		cfg.Delay = d
	}
	return cfg, nil
}

// Step dispatches one action. Exactly one of Send and Run is set.
type Step struct {
	// Send names a synchronous action.
	Send string `yaml:"send,omitempty" json:"send,omitempty"`

	// Run names an async action.
	Run string `yaml:"run,omitempty" json:"run,omitempty"`

	// Args are the action arguments.
	Args demo.Args `yaml:"args,omitempty" json:"args,omitempty"`

	// From is where Send is called: "loop" (default) or "goroutine".
	From string `yaml:"from,omitempty" json:"from,omitempty"`

	// AutoThreading sends with store.WithAutoThreading.
	AutoThreading bool `yaml:"auto_threading,omitempty" json:"auto_threading,omitempty"`

	// Priority is the dispatch priority name, e.g. "high".
	Priority string `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Step origins.
const (
	FromLoop      = "loop"
	FromGoroutine = "goroutine"
)

// Assertion validates the result of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type" json:"type"`

	// Action names the action for trace_contains and trace_count.
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// Actions lists actions in expected order for trace_order.
	Actions []string `yaml:"actions,omitempty" json:"actions,omitempty"`

	// Event names the event type for event_count.
	Event string `yaml:"event,omitempty" json:"event,omitempty"`

	// Count is the expected number for emissions, trace_count, event_count.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Expect is the subset of fields final_state checks.
	Expect map[string]any `yaml:"expect,omitempty" json:"expect,omitempty"`

	// States is the exact state trace states checks.
	States []map[string]any `yaml:"states,omitempty" json:"states,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertStates        = "states"
	AssertEmissions     = "emissions"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertEventCount    = "event_count"
)

// ScenarioExtensions are the file extensions LoadScenario understands.
var ScenarioExtensions = []string{".yaml", ".yml", ".cue"}

// IsScenarioFile reports whether path has a scenario extension.
func IsScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ScenarioExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LoadScenario reads a YAML or CUE scenario file and validates it.
// YAML files are decoded strictly: unknown fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return scenario, nil
}

func parseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &scenario, nil
}

// parseCUE evaluates a CUE file and decodes it into a Scenario. The file may
// declare the scenario at top level or under a "scenario" field.
func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile CUE: %w", err)
	}

	if nested := v.LookupPath(cue.ParsePath("scenario")); nested.Exists() {
		v = nested
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate CUE: %w", err)
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("decode CUE: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and per-step consistency.
func validateScenario(s *Scenario) error {
	var errs []error

	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Description == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if s.Demo == "" {
		errs = append(errs, errors.New("demo is required"))
	}
	if _, err := s.Config.Demo(); err != nil {
		errs = append(errs, err)
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("steps list is required and must be non-empty"))
	}
	if len(s.Assertions) == 0 {
		errs = append(errs, errors.New("assertions list is required and must be non-empty"))
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			errs = append(errs, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateStep(index int, step Step) error {
	switch {
	case step.Send == "" && step.Run == "":
		return fmt.Errorf("steps[%d]: one of send or run is required", index)
	case step.Send != "" && step.Run != "":
		return fmt.Errorf("steps[%d]: send and run are mutually exclusive", index)
	}

	switch step.From {
	case "", FromLoop, FromGoroutine:
	default:
		return fmt.Errorf("steps[%d]: from must be %q or %q, got %q", index, FromLoop, FromGoroutine, step.From)
	}
	if step.Run != "" && (step.From != "" || step.AutoThreading) {
		return fmt.Errorf("steps[%d]: from and auto_threading apply to send only", index)
	}

	if _, err := mainloop.ParsePriority(step.Priority); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertStates:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states is required for states", index)
		}
	case AssertEmissions:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
