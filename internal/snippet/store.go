// Package snippet implements the per-verification-run store of deferred
// class-relationship checks and its shared-cache serialization format.
//
// A snippet is a (child, parent) pair of indices into the verification pass's
// class-name table. Snippets are collected while one class is verified,
// processed once the pass completes, and optionally persisted to the shared
// cache so later runs skip re-deriving them.
package snippet

import (
	"github.com/class-verify/pkg/errors"
)

// Snippet is one deferred relationship check, referencing the pass-local
// class-name table by index.
type Snippet struct {
	ChildNameIndex  int
	ParentNameIndex int
}

// Store deduplicates snippets recorded during a single verification pass.
// It is not safe for concurrent use; a pass runs on one goroutine.
type Store struct {
	index map[Snippet]struct{}
	order []Snippet
	limit int
}

// NewStore creates a snippet store. A limit of zero means unlimited; a
// positive limit turns exhaustion into an insufficient-memory error.
func NewStore(limit int) *Store {
	return &Store{
		index: make(map[Snippet]struct{}),
		limit: limit,
	}
}

// Record inserts the (child, parent) pair if it is not already present.
// Returns true if a new entry was inserted, false if the pair was already
// recorded. Recording an existing pair is not an error.
func (s *Store) Record(childNameIndex, parentNameIndex int) (bool, error) {
	entry := Snippet{ChildNameIndex: childNameIndex, ParentNameIndex: parentNameIndex}
	if _, ok := s.index[entry]; ok {
		return false, nil
	}
	if s.limit > 0 && len(s.order) >= s.limit {
		return false, errors.Wrap(errors.CodeInsufficientMemory, "snippet store limit reached", nil)
	}
	s.index[entry] = struct{}{}
	s.order = append(s.order, entry)
	return true, nil
}

// Len returns the number of unique snippets recorded.
func (s *Store) Len() int {
	return len(s.order)
}

// Snippets returns the unique snippets in insertion order. The returned slice
// is owned by the store and must not be mutated.
func (s *Store) Snippets() []Snippet {
	return s.order
}
