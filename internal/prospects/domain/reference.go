package domain

import "github.com/google/uuid"

// Reference is a tagged union for fields that may be either a bare id or an
// expanded record depending on the query path. The expansion is resolved
// explicitly at the repository boundary; consumers check Expanded rather than
// sniffing the shape of the value.
type Reference[T any] struct {
	id       uuid.UUID
	expanded *T
}

// RefID creates an unexpanded reference holding only the id.
func RefID[T any](id uuid.UUID) Reference[T] {
	return Reference[T]{id: id}
}

// RefExpanded creates a reference carrying the full record.
func RefExpanded[T any](id uuid.UUID, value T) Reference[T] {
	return Reference[T]{id: id, expanded: &value}
}

// ID returns the referenced record's id, available in both variants.
func (r Reference[T]) ID() uuid.UUID {
	return r.id
}

// IsZero reports whether the reference points at nothing.
func (r Reference[T]) IsZero() bool {
	return r.id == uuid.Nil
}

// Expanded returns the full record when the reference was resolved.
func (r Reference[T]) Expanded() (T, bool) {
	if r.expanded == nil {
		var zero T
		return zero, false
	}
	return *r.expanded, true
}
