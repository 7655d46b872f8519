package tree

import (
	"math"
	"math/rand"
	"sync"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/internal/randutil"
	"github.com/copse-ml/copse/split"
	"github.com/copse-ml/copse/storedtree"
)

// Config holds the per-trainer hyperparameters a Builder needs, mirroring
// TreeTrainer's constructor arguments (spec.md §6).
type Config struct {
	CostKind            cost.Kind
	NumFeaturesForSplit int
	MinLeafNode         int
	MinSplitNode        int
	MaxDepth            int // negative means unbounded
	MaxNumNodes         int // 0 means unbounded

	// Presorted, when non-nil, holds a whole-dataset sorted index per
	// continuous feature (ForestTrainer's presorting, spec.md §6); the
	// builder consults it when no ancestor has a cached sorted order.
	Presorted map[int][]uint32
}

// Builder drives one tree's node expansion (spec.md §4.5). It is safe for
// concurrent use: mu guards every mutation of shared state (the arena, the
// StoredTree.Builder, and the node counter), matching the synchronization
// discipline of spec.md §5 — a node's own Subset/Stats/SplitInfo are
// touched only by whichever goroutine currently owns that node.
type Builder struct {
	ds    *dataset.Dataset
	cfg   Config
	table *cost.NLogNTable

	mu                sync.Mutex
	arena             *arena
	stored            *storedtree.Builder
	numCellsAndLeaves int // cells and leaves written to stored so far
}

// NewBuilder constructs a Builder. table may be nil unless cfg.CostKind is
// cost.Entropy.
func NewBuilder(ds *dataset.Dataset, cfg Config, table *cost.NLogNTable) *Builder {
	return &Builder{
		ds:     ds,
		cfg:    cfg,
		table:  table,
		arena:  newArena(),
		stored: storedtree.NewBuilder(ds.IsClassification(), ds.NumFeatures()),
	}
}

// Build runs the tree to completion serially from a root Subset (typically
// dataset.MakeRoot or a bootstrap Subset) and returns the finished
// StoredTree.
func (b *Builder) Build(root *dataset.Subset, rng *rand.Rand) (*storedtree.Tree, error) {
	rootIdx := b.newNode(0, noParent, root)
	_, parentCost, err := b.visit(rootIdx, rng)
	if err != nil {
		return nil, err
	}
	return b.Finish(parentCost), nil
}

// Finish finalizes the StoredTree once every node has been visited, serial
// or parallel (the schedule package calls this once its driver loop ends).
func (b *Builder) Finish(rootCost float64) *storedtree.Tree {
	return b.stored.Finish(rootCost)
}

func (b *Builder) newNode(depth int, parent int32, s *dataset.Subset) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arena.add(&node{depth: depth, parent: parent, subset: s})
}

// node retrieves an arena slot under the builder's mutex, which also
// guards the arena's backing slice against concurrent growth; the
// returned pointer's fields are then safe to read/write without locking,
// since exactly one goroutine owns a given node at a time.
func (b *Builder) node(idx int32) *node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arena.get(idx)
}

// NodeResult is the outcome of processing one node without descending into
// its children — the unit of work both the serial visit and the parallel
// scheduler's SplitRawNode job share (spec.md §4.5/§4.6).
type NodeResult struct {
	IsLeaf bool
	Ref    int32 // valid when IsLeaf: the StoredTree leaf ref (<=0)
	Cost   float64

	CellID          int32
	LeftIdx         int32
	RightIdx        int32
	LeftSubsetSize  int
	RightSubsetSize int
}

// visit implements the serial post-order walk of spec.md §4.5: stats, best
// split, write leaf or cell+recurse. Returns the StoredTree ref for this
// node (positive cell id, or <=0 encoding a leaf) plus this node's own cost
// (the caller needs the root's cost for the final loss bookkeeping).
func (b *Builder) visit(idx int32, rng *rand.Rand) (int32, float64, error) {
	res, err := b.ProcessNode(idx, rng)
	if err != nil {
		return 0, 0, err
	}
	if res.IsLeaf {
		return res.Ref, res.Cost, nil
	}
	leftRef, _, err := b.visit(res.LeftIdx, rng)
	if err != nil {
		return 0, 0, err
	}
	rightRef, _, err := b.visit(res.RightIdx, rng)
	if err != nil {
		return 0, 0, err
	}
	b.SetChildren(res.CellID, leftRef, rightRef)
	b.DiscardSubset(idx)
	return res.CellID, res.Cost, nil
}

// SeedRoot creates the root arena node (always idx 0) from a Subset without
// visiting it, letting a caller choose later whether to finish the tree
// with Build's serial walk or hand idx 0 to a schedule.Scheduler.
func (b *Builder) SeedRoot(root *dataset.Subset) int32 {
	return b.newNode(0, noParent, root)
}

// RunSerial runs the existing single-goroutine post-order walk from idx to
// completion, including its descendants — the parallel-build worker's fast
// path for a node at or below MaxNumSampleForSerialBuild (spec.md §4.6).
func (b *Builder) RunSerial(idx int32, rng *rand.Rand) (ref int32, cost float64, err error) {
	return b.visit(idx, rng)
}

// ProcessNode computes a node's stats and best split, writes either a leaf
// or a cell, and (for an internal node) creates its two children in the
// arena — without descending into them. This is the unit the parallel
// scheduler's SplitRawNode job dispatches when a node's size is at or below
// MaxNumSampleForSerialSplit (spec.md §4.6): the split search itself still
// runs inline across the sampled features.
func (b *Builder) ProcessNode(idx int32, rng *rand.Rand) (NodeResult, error) {
	stats, isLeaf, leafRef, err := b.PrepareStats(idx)
	if err != nil {
		return NodeResult{}, err
	}
	if isLeaf {
		return NodeResult{IsLeaf: true, Ref: leafRef, Cost: stats.Cost}, nil
	}

	n := b.node(idx)
	cand, ok := b.findBestSplit(idx, n, rng)
	if !ok || cand.Gain < cost.FloatError {
		return NodeResult{IsLeaf: true, Ref: b.WriteLeaf(idx), Cost: stats.Cost}, nil
	}
	info := split.NewSplitInfo(1)
	info.Merge(cand)
	return b.FinalizeSplit(idx, info)
}

// PrepareStats computes a node's NodeStats and reports whether it is already
// a leaf (either MaxNumNodes-exhausted or failing Splittable), writing the
// leaf immediately when so. Callers that go on to search features only do
// so when isLeaf is false.
func (b *Builder) PrepareStats(idx int32) (stats *dataset.NodeStats, isLeaf bool, leafRef int32, err error) {
	n := b.node(idx)
	stats, err = dataset.ComputeStats(n.subset, b.cfg.CostKind, b.table)
	if err != nil {
		return nil, false, 0, err
	}
	n.stats = stats

	// Splitting adds two arena nodes; refuse when that would exceed the cap
	// (spec.md §7 Exhausted, recovered by writing a leaf).
	b.mu.Lock()
	exhausted := b.cfg.MaxNumNodes > 0 && len(b.arena.nodes)+2 > b.cfg.MaxNumNodes
	b.mu.Unlock()
	if exhausted || !stats.Splittable(n.depth, b.cfg.MaxDepth, b.cfg.MinSplitNode) {
		return stats, true, b.WriteLeaf(idx), nil
	}
	return stats, false, 0, nil
}

// SampleFeatures draws the num_features_for_split feature indices a node's
// split search should cover (spec.md §4.5 "Feature sampling"), using rng so
// parallel-split callers can fan the result out as independent jobs.
func (b *Builder) SampleFeatures(rng *rand.Rand) []int {
	numFeatures := b.ds.NumFeatures()
	ids := make([]int, numFeatures)
	for i := range ids {
		ids[i] = i
	}
	k := b.cfg.NumFeaturesForSplit
	if k > numFeatures {
		k = numFeatures
	}
	randutil.ShufflePrefix(rng, ids, k)
	return ids[:k]
}

// SearchFeature runs one feature's split search against a node already
// prepared by PrepareStats — the unit of work a parallel-split SplitOnFeature
// job dispatches (spec.md §4.6). Safe to call concurrently for distinct
// featureIdx values on the same node, since each touches only that
// feature's column/sort state.
func (b *Builder) SearchFeature(idx int32, featureIdx int, rng *rand.Rand) (split.Candidate, bool) {
	n := b.node(idx)
	var anc ancestorInfo
	if b.ds.FeatureType(featureIdx) == dataset.Continuous {
		anc = b.prepareContinuous(idx, n, featureIdx)
	} else {
		n.subset.Gather(featureIdx)
	}
	cand, ok := split.FindBest(n.subset, featureIdx, n.stats, b.cfg.CostKind, b.table, b.effectiveMinLeaf(), rng)
	if b.ds.FeatureType(featureIdx) == dataset.Continuous {
		b.maybeDiscardContinuous(n, featureIdx, anc)
	}
	return cand, ok
}

// FinalizeSplit partitions a node's Subset using the node's (already
// fully-merged and FinishUpdate'd) SplitInfo, allocates its StoredTree cell
// and two children, and records feature importance — the tail half of
// ProcessNode, shared with the parallel-split path once every sampled
// feature has reported into the shared SplitInfo.
func (b *Builder) FinalizeSplit(idx int32, info *split.SplitInfo) (NodeResult, error) {
	n := b.node(idx)
	if info.Kind == split.Leaf {
		return NodeResult{IsLeaf: true, Ref: b.WriteLeaf(idx), Cost: n.stats.Cost}, nil
	}

	left, right := n.subset.Partition(info)
	n.subset.DiscardTemporaryElements()

	leftIdx := b.newNode(n.depth+1, idx, left)
	rightIdx := b.newNode(n.depth+1, idx, right)

	cand := split.Candidate{Kind: info.Kind, FeatureIdx: info.FeatureIdx, Gain: info.Gain, Threshold: info.Threshold, Bin: info.Bin, Bitmask: info.Bitmask}
	cellID := b.allocCell(idx, cand)
	b.mu.Lock()
	b.stored.AddImportance(cand.FeatureIdx, cand.Gain)
	b.mu.Unlock()

	return NodeResult{
		CellID: cellID, LeftIdx: leftIdx, RightIdx: rightIdx,
		LeftSubsetSize: left.Size(), RightSubsetSize: right.Size(),
		Cost: n.stats.Cost,
	}, nil
}

// NodeSize returns a node's current Subset size, letting the parallel
// scheduler decide serial-vs-parallel per spec.md §4.6's thresholds without
// reaching into tree package internals.
func (b *Builder) NodeSize(idx int32) int {
	return b.node(idx).subset.Size()
}

// SetChildren records the StoredTree refs of a node's two children once
// both have finished — the parallel scheduler calls this itself, since it
// controls the order children are dispatched in.
func (b *Builder) SetChildren(cellID, leftRef, rightRef int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stored.SetChildren(cellID, leftRef, rightRef)
}

// DiscardSubset releases a processed node's Subset once both its children
// (or its leaf write) are fully handled (spec.md §3 TreeNode lifecycle).
func (b *Builder) DiscardSubset(idx int32) {
	b.node(idx).subset.DiscardSubset()
}

func (b *Builder) allocCell(idx int32, cand split.Candidate) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	info := encodeInfo(b.stored, cand)
	if idx == 0 {
		b.stored.WriteRoot(cand.Kind, cand.FeatureIdx, info)
		b.numCellsAndLeaves++
		return 0
	}
	b.numCellsAndLeaves++
	return b.stored.NewCell(cand.Kind, cand.FeatureIdx, info)
}

func encodeInfo(stored *storedtree.Builder, cand split.Candidate) float64 {
	switch cand.Kind {
	case split.Continuous:
		return cand.Threshold
	case split.Ordinal, split.OneVsAll:
		return float64(cand.Bin)
	case split.LowCardinality, split.HighCardinality:
		return stored.AddBitmask(cand.Bitmask)
	default:
		return 0
	}
}

// WriteLeaf commits idx as a StoredTree leaf using its already-computed
// NodeStats and returns the leaf ref (<=0). PrepareStats, ProcessNode and
// FinalizeSplit call it whenever a node ends as a leaf.
func (b *Builder) WriteLeaf(idx int32) int32 {
	n := b.node(idx)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.numCellsAndLeaves++
	if n.stats.IsClassification {
		probs := make([]float64, len(n.stats.Histogram))
		if n.stats.WNumSamples > 0 {
			for c, h := range n.stats.Histogram {
				probs[c] = h / n.stats.WNumSamples
			}
		}
		return -b.stored.NewLeaf(probs)
	}
	mean := 0.0
	if n.stats.NumSamples > 0 {
		mean = n.stats.Sum / float64(n.stats.NumSamples)
	}
	return -b.stored.NewRegressionLeaf(mean)
}

// findBestSplit samples num_features_for_split features (spec.md §4.5
// "Feature sampling"), prepares each one's subset/sort state, and returns
// the single best candidate across them. This is the inline, single-
// goroutine equivalent of the parallel-split path's SampleFeatures +
// per-feature SearchFeature jobs merged into a shared SplitInfo.
func (b *Builder) findBestSplit(idx int32, n *node, rng *rand.Rand) (split.Candidate, bool) {
	found := false
	var best split.Candidate
	for _, featureIdx := range b.SampleFeatures(rng) {
		cand, ok := b.SearchFeature(idx, featureIdx, rng)
		if !ok {
			continue
		}
		if !found || cand.Gain > best.Gain {
			found = true
			best = cand
		}
	}
	return best, found
}

// effectiveMinLeaf implements the open-question decision of spec.md §9:
// weighted minima for classification, plain minima for regression. Both
// searchers already compare against weighted/plain counts internally, so
// min_leaf_node itself is passed through unscaled.
func (b *Builder) effectiveMinLeaf() int { return b.cfg.MinLeafNode }

// ancestorInfo captures the A value from spec.md §4.5's prepare-subset
// rule, resolved once per (node, feature) and reused by the later discard
// decision.
type ancestorInfo struct {
	size      int
	ancestor  *dataset.Subset // nil when the source is the forest-level presort
	hadSource bool
}

// ancestorWithSortedIdx walks the parent chain looking for the nearest
// ancestor whose sorted order for featureIdx is still cached (spec.md §4.5
// "prepare-subset (continuous)").
func (b *Builder) ancestorWithSortedIdx(idx int32, featureIdx int) *dataset.Subset {
	n := b.node(idx)
	for n.parent != noParent {
		n = b.node(n.parent)
		if n.subset.HasSortedIdx(featureIdx) {
			return n.subset
		}
	}
	return nil
}

func (b *Builder) resolveAncestor(idx int32, featureIdx int) ancestorInfo {
	if anc := b.ancestorWithSortedIdx(idx, featureIdx); anc != nil {
		return ancestorInfo{size: anc.Size(), ancestor: anc, hadSource: true}
	}
	if presorted, ok := b.cfg.Presorted[featureIdx]; ok {
		return ancestorInfo{size: len(presorted), hadSource: true}
	}
	return ancestorInfo{}
}

func (b *Builder) prepareContinuous(idx int32, n *node, featureIdx int) ancestorInfo {
	a := b.resolveAncestor(idx, featureIdx)
	size := n.subset.Size()
	threshold := float64(size) * math.Log2(float64(size)) * SubsetToSortRatio
	if !a.hadSource || float64(a.size) > threshold {
		n.subset.Sort(featureIdx)
		return a
	}
	if a.ancestor != nil {
		n.subset.SubsetFromAncestor(a.ancestor, featureIdx)
	} else {
		n.subset.SubsetFromPresorted(b.cfg.Presorted[featureIdx], featureIdx)
	}
	return a
}

func (b *Builder) maybeDiscardContinuous(n *node, featureIdx int, a ancestorInfo) {
	if !a.hadSource {
		return
	}
	if float64(n.subset.Size())*MemorySavingFactor >= float64(a.size) {
		n.subset.DiscardSortedIdx(featureIdx)
	}
}

