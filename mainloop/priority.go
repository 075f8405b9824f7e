package mainloop

import (
	"fmt"
	"strings"
)

// Priority orders work waiting on the loop. Higher priorities are drained
// first; work of equal priority runs in submission order.
type Priority uint8

const (
	PriorityBackground Priority = iota
	PriorityUtility
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityUserInitiated

	numPriorities = int(PriorityUserInitiated) + 1
)

// PriorityDefault is used when no priority is given.
const PriorityDefault = PriorityMedium

var priorityNames = [numPriorities]string{
	"background",
	"utility",
	"low",
	"medium",
	"high",
	"user-initiated",
}

// String returns the lower-case name of the priority.
func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
	return priorityNames[p]
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return int(p) < numPriorities
}

// ParsePriority parses a priority name as produced by String.
// The empty string parses to PriorityDefault.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "default" {
		return PriorityDefault, nil
	}
	for i, name := range priorityNames {
		if name == s {
			return Priority(i), nil
		}
	}
	return PriorityDefault, fmt.Errorf("unknown priority %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
