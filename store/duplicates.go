package store

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// AllowDuplicates wraps a state field whose every write counts as a change,
// even when the new value equals the old one.
//
// Each Set bumps an internal version. Equality (Equal, and therefore the
// whole-state Stream) still compares values only; SelectVersioned compares
// versions, so it emits once per write.
//
// The zero value holds the zero V at version 0.
type AllowDuplicates[V any] struct {
	value   V
	version uint64
}

// Duplicates wraps an initial value. The initial value does not count as a
// write.
func Duplicates[V any](v V) AllowDuplicates[V] {
	return AllowDuplicates[V]{value: v}
}

// Get returns the wrapped value.
func (d AllowDuplicates[V]) Get() V {
	return d.value
}

// Set stores v and bumps the version. The version wraps around on overflow.
func (d *AllowDuplicates[V]) Set(v V) {
	d.value = v
	d.version++
}

// Version returns the number of writes since construction.
func (d AllowDuplicates[V]) Version() uint64 {
	return d.version
}

// Equal compares wrapped values, ignoring versions.
func (d AllowDuplicates[V]) Equal(other AllowDuplicates[V]) bool {
	return equalValues(d.value, other.value)
}

func (d AllowDuplicates[V]) String() string {
	return fmt.Sprint(d.value)
}

// MarshalJSON encodes the wrapped value only.
func (d AllowDuplicates[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.value)
}

// UnmarshalJSON decodes into the wrapped value; the version is untouched.
func (d *AllowDuplicates[V]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.value)
}

// MarshalYAML encodes the wrapped value only.
func (d AllowDuplicates[V]) MarshalYAML() (any, error) {
	return d.value, nil
}

// UnmarshalYAML decodes into the wrapped value; the version is untouched.
func (d *AllowDuplicates[V]) UnmarshalYAML(node *yaml.Node) error {
	return node.Decode(&d.value)
}
