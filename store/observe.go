package store

import "github.com/seonyeopkim/asyncaction/stream"

// Stream returns the whole-state stream. A subscriber receives the current
// state, then every state that differs from the one it saw last, compared
// with the store's equality (see WithEqual).
func (s *Store[S, A, AA]) Stream() stream.Stream[S] {
	return stream.DistinctFunc(s.subject.Stream(), s.equal)
}

// Select projects the state onto one field and emits the field's value
// whenever it changes. Values are compared structurally, so an
// AllowDuplicates field selected here behaves like a plain field; use
// SelectVersioned to see every write.
func Select[S, A, AA, V any](s *Store[S, A, AA], field func(S) V) stream.Stream[V] {
	return stream.DistinctFunc(stream.Map(s.subject.Stream(), field), equalValues[V])
}

// SelectVersioned projects the state onto an AllowDuplicates field and emits
// once per write, including writes that store an equal value.
func SelectVersioned[S, A, AA, V any](s *Store[S, A, AA], field func(S) AllowDuplicates[V]) stream.Stream[V] {
	versions := stream.DistinctBy(stream.Map(s.subject.Stream(), field), AllowDuplicates[V].Version)
	return stream.Map(versions, AllowDuplicates[V].Get)
}
