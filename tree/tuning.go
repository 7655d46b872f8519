package tree

// Tuning constants from spec.md §6, shared by the serial builder and the
// schedule package's parallel-build/parallel-split thresholds.
const (
	// SubsetToSortRatio: prefer subsetting from an ancestor's sorted order
	// while ancestor_size <= node_size*log2(node_size)*ratio.
	SubsetToSortRatio = 4.0
	// MemorySavingFactor: discard a cached sorted order once
	// child_size*factor >= the ancestor size it was read from.
	MemorySavingFactor = 3.0
	// MaxNumSampleForSerialBuild: parallel-build runs nodes at or below
	// this size inline instead of enqueuing further.
	MaxNumSampleForSerialBuild = 10_000
	// MaxNumSampleForSerialSplit: parallel-split fans split search across
	// features once a node's size exceeds this.
	MaxNumSampleForSerialSplit = 50_000
)
