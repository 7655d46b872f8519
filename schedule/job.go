// Package schedule implements the parallel job scheduler of spec.md §4.6:
// a priority job queue plus a fixed-size worker pool that drives one or
// more tree.Builder instances through parallel-build and parallel-split
// mode. Each node draws from its own RNG seeded from the tree seed and the
// node's arena index, not from the single RNG that tree.Builder.Build
// threads through its serial walk.
package schedule

import (
	"math/rand"

	"github.com/copse-ml/copse/split"
)

// Kind totally orders job kinds; within a kind, jobs tie-break per Less.
type Kind int

const (
	// SplitRawNode processes one node: stats, best split (inline or, for a
	// large node, fanned out via SplitOnFeature), partition, children.
	SplitRawNode Kind = iota
	// SplitOnFeature searches a single feature of a node already in
	// parallel-split mode and merges its candidate into the shared SplitInfo.
	SplitOnFeature
	// SplitProcessedNode finalizes a parallel-split node once every sampled
	// feature has reported into its SplitInfo.
	SplitProcessedNode
	// WriteToTree finalizes one tree's StoredTree once every node in it has
	// resolved — the single finalizing worker of spec.md §5.
	WriteToTree
)

func (k Kind) String() string {
	switch k {
	case SplitRawNode:
		return "split_raw_node"
	case SplitOnFeature:
		return "split_on_feature"
	case SplitProcessedNode:
		return "split_processed_node"
	case WriteToTree:
		return "write_to_tree"
	default:
		return "unknown"
	}
}

// noParentIdx marks a root job — the node has no parent to link into.
const noParentIdx int32 = -1

// Job is one unit of scheduler work. Only the fields relevant to Kind are
// meaningful; see the tree package's Builder methods for what each kind
// dispatches to.
type Job struct {
	Kind   Kind
	TreeID int

	NodeIdx      int32 // node this job processes
	ParentIdx    int32 // arena idx of the parent node; noParentIdx for a tree root
	ParentCellID int32 // parent's StoredTree cell id, meaningful when ParentIdx != noParentIdx
	IsLeftChild  bool

	FeatureIdx int             // SplitOnFeature
	Gain       float64         // SplitProcessedNode tie-break (descending)
	SplitInfo  *split.SplitInfo // SplitOnFeature/SplitProcessedNode shared payload

	Rng *rand.Rand
}

// less implements the ordering of spec.md §4.6: kind id first; feature-split
// jobs tie-break on feature_idx; SplitProcessedNode (this port's DoSplit)
// tie-breaks by descending gain; everything else by tree/node identity.
func less(a, b *Job) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	switch a.Kind {
	case SplitOnFeature:
		if a.FeatureIdx != b.FeatureIdx {
			return a.FeatureIdx < b.FeatureIdx
		}
	case SplitProcessedNode:
		if a.Gain != b.Gain {
			return a.Gain > b.Gain
		}
	}
	if a.TreeID != b.TreeID {
		return a.TreeID < b.TreeID
	}
	return a.NodeIdx < b.NodeIdx
}
