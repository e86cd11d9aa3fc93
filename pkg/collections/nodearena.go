// Package collections provides generic data structures for the verification engine.
package collections

// ============================================================================
// NodeArena - Index-addressed node pool with intrusive chaining
// ============================================================================
//
// Nodes live in one growable backing slice and are addressed by index rather
// than pointer. Freed nodes go on an internal free list and are reused by the
// next Alloc, so building and tearing down many short-lived linked structures
// does not churn the allocator. An optional element limit turns exhaustion
// into an explicit failure instead of unbounded growth.

// NilNode marks the absence of a node, e.g. the end of a chain.
const NilNode int32 = -1

type arenaNode[T any] struct {
	value T
	next  int32
}

// NodeArena is a pool of nodes of type T, each carrying an intrusive next
// index so callers can build singly-linked chains without per-node pointers.
type NodeArena[T any] struct {
	nodes []arenaNode[T]
	free  int32
	inUse int
	limit int
}

// NewNodeArena creates an arena with the given initial reservation.
// A limit of zero means unlimited.
func NewNodeArena[T any](reserve int, limit int) *NodeArena[T] {
	if reserve < 0 {
		reserve = 0
	}
	return &NodeArena[T]{
		nodes: make([]arenaNode[T], 0, reserve),
		free:  NilNode,
		limit: limit,
	}
}

// Alloc takes a node from the pool and initializes it with v and no successor.
// Returns false if the element limit has been reached.
func (a *NodeArena[T]) Alloc(v T) (int32, bool) {
	if a.limit > 0 && a.inUse >= a.limit {
		return NilNode, false
	}
	var idx int32
	if a.free != NilNode {
		idx = a.free
		a.free = a.nodes[idx].next
		a.nodes[idx] = arenaNode[T]{value: v, next: NilNode}
	} else {
		idx = int32(len(a.nodes))
		a.nodes = append(a.nodes, arenaNode[T]{value: v, next: NilNode})
	}
	a.inUse++
	return idx, true
}

// Release returns a node to the pool. The node's value is zeroed so the arena
// does not pin memory owned by the caller.
func (a *NodeArena[T]) Release(idx int32) {
	var zero T
	a.nodes[idx] = arenaNode[T]{value: zero, next: a.free}
	a.free = idx
	a.inUse--
}

// Value returns a pointer to the node's value. The pointer is invalidated by
// the next Alloc, so callers must not hold it across allocations.
func (a *NodeArena[T]) Value(idx int32) *T {
	return &a.nodes[idx].value
}

// Next returns the node's successor index, or NilNode.
func (a *NodeArena[T]) Next(idx int32) int32 {
	return a.nodes[idx].next
}

// SetNext links a node to a successor.
func (a *NodeArena[T]) SetNext(idx, next int32) {
	a.nodes[idx].next = next
}

// Len returns the number of nodes currently allocated.
func (a *NodeArena[T]) Len() int {
	return a.inUse
}

// Reset discards every node, keeping the backing storage for reuse.
func (a *NodeArena[T]) Reset() {
	a.nodes = a.nodes[:0]
	a.free = NilNode
	a.inUse = 0
}
