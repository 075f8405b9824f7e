package demo

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Args are the string arguments of a named action, as read from a scenario
// file or the command line.
type Args map[string]string

// Constructor builds an action from its arguments.
type Constructor[A any] func(args Args) (A, error)

// Registry maps action names to constructors.
//
// Names are matched after normalization, so "logCount", "log_count" and
// "Log-Count" all name the same action.
type Registry[A any] struct {
	entries map[string]Constructor[A]
	names   []string
}

// NewRegistry creates an empty registry.
func NewRegistry[A any]() *Registry[A] {
	return &Registry[A]{entries: make(map[string]Constructor[A])}
}

// Register adds an action. Registering a name twice panics.
func (r *Registry[A]) Register(name string, build Constructor[A]) *Registry[A] {
	key := NormalizeName(name)
	if _, exists := r.entries[key]; exists {
		panic(fmt.Sprintf("demo: action %q registered twice", name))
	}
	r.entries[key] = build
	r.names = append(r.names, name)
	return r
}

// Value registers an action that takes no arguments.
func (r *Registry[A]) Value(name string, action A) *Registry[A] {
	return r.Register(name, func(Args) (A, error) { return action, nil })
}

// Build constructs the action registered under name.
func (r *Registry[A]) Build(name string, args Args) (A, error) {
	build, ok := r.entries[NormalizeName(name)]
	if !ok {
		var zero A
		return zero, &UnknownActionError{Name: name, Known: r.Names()}
	}
	return build(args)
}

// Names returns the registered names in registration order.
func (r *Registry[A]) Names() []string {
	return slices.Clone(r.names)
}

// NormalizeName folds an action name to its lookup key: NFKC, lower case,
// with separators removed.
func NormalizeName(name string) string {
	name = norm.NFKC.String(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			continue
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// UnknownActionError reports a name missing from a registry.
type UnknownActionError struct {
	Name  string
	Known []string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// MissingArgError reports a required argument absent from Args.
type MissingArgError struct {
	Action string
	Arg    string
}

func (e *MissingArgError) Error() string {
	return fmt.Sprintf("action %s: missing argument %q", e.Action, e.Arg)
}
