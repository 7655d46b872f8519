// Package tree drives single-tree node expansion: feature sampling, the
// sort-vs-ancestor-subset choice for continuous features, split search,
// partitioning, and StoredTree emission (spec.md §4.5). Nodes form an arena
// of indices rather than a pointer graph, per the "Cyclic/graph references"
// design note: children are owned by their arena slot, the parent link is a
// plain non-owning index.
package tree

import (
	"github.com/copse-ml/copse/dataset"
)

// noParent marks the root node's Parent field.
const noParent = -1

// node is one arena slot: an owned Subset/Stats pair plus the parent index
// needed to walk up for ancestor-subset reuse (spec.md §4.1).
type node struct {
	depth  int
	parent int32 // noParent for the root

	subset *dataset.Subset
	stats  *dataset.NodeStats
}

// arena is the index-based node store backing one tree build (spec.md §9
// design note: "implement as an arena of node handles... this avoids the
// C++ raw-pointer parent back-reference").
type arena struct {
	nodes []*node
}

func newArena() *arena {
	return &arena{}
}

func (a *arena) add(n *node) int32 {
	a.nodes = append(a.nodes, n)
	return int32(len(a.nodes) - 1)
}

// get retrieves a node pointer. Callers synchronize access to the arena's
// backing slice themselves (Builder.node); once retrieved, a *node's own
// fields are touched only by whichever goroutine currently owns it.
func (a *arena) get(idx int32) *node { return a.nodes[idx] }
