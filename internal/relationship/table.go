// Package relationship implements the per-class-loader table of deferred
// class relationships.
//
// A relationship that cannot be proven while a class is verified (because the
// child or parent is not loaded yet) is recorded here as a child-class record
// holding an ordered list of candidate parent names. Records are revalidated
// incrementally as classes load and removed once every constraint is
// satisfied.
package relationship

import (
	"bytes"

	"github.com/class-verify/pkg/collections"
	"github.com/class-verify/pkg/errors"
	"github.com/class-verify/pkg/model"
	"github.com/class-verify/pkg/utils"
)

// Flags mark special-case parent constraints on a record.
type Flags uint8

const (
	// FlagMustBeInterface marks a class that another class recorded as an
	// unresolved parent while itself already loaded: the only way the
	// relationship can still hold is if this class turns out to be an
	// interface. Set transitively during validation, never by the owning
	// class itself.
	FlagMustBeInterface Flags = 1 << 0

	// FlagParentIsThrowable records a deferred "child extends Throwable"
	// constraint. The flag supersedes a parent-list node so the well-known
	// name is never stored redundantly.
	FlagParentIsThrowable Flags = 1 << 1
)

// parentNode is one candidate parent name, pool-allocated and chained through
// the arena.
type parentNode struct {
	name []byte
}

// Record is the deferred-constraint state for one child class name.
type Record struct {
	name    []byte
	flags   Flags
	parents int32 // head of the arena chain, collections.NilNode when empty
}

// Flags returns the record's constraint flags.
func (r *Record) Flags() Flags {
	return r.flags
}

// ClassResolver is the loaded-class view the table validates against. It is
// bound to the same class loader that owns the table.
type ClassResolver interface {
	// FindLoadedClass returns the loaded class with the given internal name,
	// or nil if it has not been loaded by this loader.
	FindLoadedClass(name []byte) *model.Class

	// IsSameOrSuperClassOf reports whether ancestor is descendant or one of
	// its superclasses.
	IsSameOrSuperClassOf(ancestor, descendant *model.Class) bool

	// ThrowableClass returns the well-known throwable class, which is
	// guaranteed to be loaded before any verification runs.
	ThrowableClass() *model.Class
}

// PoolReservation returns the initial parent-node pool reservation for a
// loader kind. Loaders that load the bulk of the platform get bigger
// up-front reservations.
func PoolReservation(kind model.LoaderKind) int {
	switch kind {
	case model.LoaderKindSystem:
		return 256
	case model.LoaderKindApplication:
		return 128
	case model.LoaderKindExtension:
		return 64
	default:
		return 16
	}
}

// Limits bound the table's growth. Zero values mean unlimited. Hitting a
// limit surfaces as an insufficient-memory error, the same way allocator
// exhaustion would in the owning runtime.
type Limits struct {
	MaxRecords int
	MaxNodes   int
}

// Table maps child class names to their deferred-relationship records for one
// class loader. Callers serialize access under the loader's class-loading
// lock; the table itself does no locking.
type Table struct {
	records map[string]*Record
	pool    *collections.NodeArena[parentNode]
	limits  Limits
	log     utils.Logger
}

// NewTable allocates a table and node pool for a loader of the given kind.
func NewTable(kind model.LoaderKind, limits Limits, log utils.Logger) *Table {
	if log == nil {
		log = &utils.NullLogger{}
	}
	return &Table{
		records: make(map[string]*Record),
		pool:    collections.NewNodeArena[parentNode](PoolReservation(kind), limits.MaxNodes),
		limits:  limits,
		log:     log,
	}
}

// Len returns the number of records currently held.
func (t *Table) Len() int {
	return len(t.records)
}

// Lookup returns the record for the given class name, or nil.
func (t *Table) Lookup(className []byte) *Record {
	return t.records[string(className)]
}

// Record stores a deferred (child, parent) relationship. The child's record
// is created on first use. A parent named java/lang/Throwable sets
// FlagParentIsThrowable instead of adding a list node; the flag is idempotent.
// Other parents are inserted into the child's parent list ordered by
// ascending name length, with byte-identical duplicates skipped.
func (t *Table) Record(childName, parentName []byte) error {
	entry, err := t.ensureRecord(childName, 0)
	if err != nil {
		return err
	}

	if string(parentName) == model.ThrowableClassName {
		entry.flags |= FlagParentIsThrowable
		return nil
	}

	return t.insertParent(entry, parentName)
}

// insertParent places parentName into the record's ordered list. Equal-length
// names append after existing ones unless a byte-identical match makes the
// insertion a no-op.
func (t *Table) insertParent(entry *Record, parentName []byte) error {
	prev := collections.NilNode
	walk := entry.parents
	for walk != collections.NilNode {
		node := t.pool.Value(walk)
		if len(node.name) > len(parentName) {
			break
		}
		if bytes.Equal(node.name, parentName) {
			// Already present.
			return nil
		}
		prev = walk
		walk = t.pool.Next(walk)
	}

	idx, ok := t.pool.Alloc(parentNode{name: append([]byte(nil), parentName...)})
	if !ok {
		t.log.Debug("parent node pool exhausted recording %s", parentName)
		return errors.Wrap(errors.CodeInsufficientMemory, "relationship node pool exhausted", nil)
	}
	t.pool.SetNext(idx, walk)
	if prev == collections.NilNode {
		entry.parents = idx
	} else {
		t.pool.SetNext(prev, idx)
	}
	return nil
}

// Validate runs every deferred constraint for childName against its freshly
// loaded class. On success the record is removed and nil is returned. On
// failure the record is retained for diagnostics and the failing class is
// returned.
func (t *Table) Validate(childName []byte, childClass *model.Class, resolver ClassResolver) *model.Class {
	entry := t.records[string(childName)]
	if entry == nil {
		// Nothing deferred, or already validated.
		return nil
	}

	if entry.flags&FlagMustBeInterface != 0 && !childClass.IsInterface {
		t.log.Debug("class %s was required to be an interface but is not", childName)
		return childClass
	}

	if entry.flags&FlagParentIsThrowable != 0 {
		throwable := resolver.ThrowableClass()
		if !resolver.IsSameOrSuperClassOf(throwable, childClass) {
			t.log.Debug("class %s does not extend %s", childName, model.ThrowableClassName)
			return throwable
		}
	}

	for walk := entry.parents; walk != collections.NilNode; walk = t.pool.Next(walk) {
		node := t.pool.Value(walk)
		parentClass := resolver.FindLoadedClass(node.name)
		if parentClass == nil {
			// The child is loaded, so an unresolved parent can only still be
			// valid if it turns out to be an interface. Record that
			// constraint against the parent name.
			parentEntry, err := t.ensureRecord(node.name, FlagMustBeInterface)
			if err != nil {
				t.log.Debug("failed to record interface constraint for %s: %v", node.name, err)
				return childClass
			}
			parentEntry.flags |= FlagMustBeInterface
			continue
		}
		if parentClass.IsInterface {
			// Interfaces satisfy any subtype obligation at this stage.
			continue
		}
		if !resolver.IsSameOrSuperClassOf(parentClass, childClass) {
			t.log.Debug("class %s is not compatible with parent %s", childName, node.name)
			return parentClass
		}
	}

	t.removeRecord(entry)
	return nil
}

// ensureRecord finds or creates the record for className, applying initial
// flags on creation only.
func (t *Table) ensureRecord(className []byte, initial Flags) (*Record, error) {
	if entry, ok := t.records[string(className)]; ok {
		return entry, nil
	}
	if t.limits.MaxRecords > 0 && len(t.records) >= t.limits.MaxRecords {
		return nil, errors.Wrap(errors.CodeInsufficientMemory, "relationship table record limit reached", nil)
	}
	entry := &Record{
		name:    append([]byte(nil), className...),
		flags:   initial,
		parents: collections.NilNode,
	}
	t.records[string(entry.name)] = entry
	return entry, nil
}

// removeRecord frees the record's parent nodes and drops it from the table.
func (t *Table) removeRecord(entry *Record) {
	for walk := entry.parents; walk != collections.NilNode; {
		next := t.pool.Next(walk)
		t.pool.Release(walk)
		walk = next
	}
	entry.parents = collections.NilNode
	delete(t.records, string(entry.name))
}

// Teardown frees every record and its parent nodes and resets the pool. Used
// when the owning class loader is destroyed.
func (t *Table) Teardown() {
	for name, entry := range t.records {
		entry.parents = collections.NilNode
		delete(t.records, name)
	}
	t.pool.Reset()
}

// ParentNames returns the record's parent names in list order, for
// diagnostics and tests.
func (t *Table) ParentNames(entry *Record) []string {
	var names []string
	for walk := entry.parents; walk != collections.NilNode; walk = t.pool.Next(walk) {
		names = append(names, string(t.pool.Value(walk).name))
	}
	return names
}

// Snapshot returns child name -> ordered parent names for every record.
func (t *Table) Snapshot() map[string][]string {
	out := make(map[string][]string, len(t.records))
	for name, entry := range t.records {
		out[name] = t.ParentNames(entry)
	}
	return out
}
