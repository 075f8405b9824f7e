package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seonyeopkim/asyncaction/internal/demo"
)

// Step is one dispatch given on the command line.
//
//	increase              send increase
//	update(data=X)        send update with args
//	run:increaseLater     run an async action
//	run:increaseLater(after=1s)
type Step struct {
	Async bool
	Name  string
	Args  demo.Args
}

func (s Step) String() string {
	var b strings.Builder
	if s.Async {
		b.WriteString("run:")
	}
	b.WriteString(s.Name)
	if len(s.Args) > 0 {
		b.WriteString("(")
		b.WriteString(formatArgs(s.Args))
		b.WriteString(")")
	}
	return b.String()
}

// ParseStep parses a step argument.
func ParseStep(raw string) (Step, error) {
	var step Step
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "run:"); ok {
		step.Async = true
		s = rest
	}

	name, argList, hasArgs := strings.Cut(s, "(")
	step.Name = strings.TrimSpace(name)
	if step.Name == "" {
		return Step{}, fmt.Errorf("step %q: missing action name", raw)
	}
	if !hasArgs {
		return step, nil
	}

	argList, ok := strings.CutSuffix(argList, ")")
	if !ok {
		return Step{}, fmt.Errorf("step %q: unclosed argument list", raw)
	}
	if strings.TrimSpace(argList) == "" {
		return step, nil
	}

	step.Args = demo.Args{}
	for _, pair := range strings.Split(argList, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return Step{}, fmt.Errorf("step %q: argument %q is not key=value", raw, pair)
		}
		step.Args[key] = strings.TrimSpace(value)
	}
	return step, nil
}

// ParseSteps parses every argument, stopping at the first error.
func ParseSteps(args []string) ([]Step, error) {
	steps := make([]Step, 0, len(args))
	for _, a := range args {
		step, err := ParseStep(a)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func formatArgs(args demo.Args) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + args[k]
	}
	return strings.Join(parts, ",")
}
