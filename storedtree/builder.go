package storedtree

import (
	"github.com/copse-ml/copse/split"
)

// Builder incrementally assembles a Tree as the tree package's walk visits
// nodes, owning the array-growth and leaf/cell id bookkeeping spec.md §4.7
// assigns to the emitter. A Builder is not safe for concurrent use;
// tree.Builder serializes every write to it under its own mutex, whichever
// worker makes the write.
type Builder struct {
	isClassification bool
	numFeatures      int

	cellType []uint32
	cellInfo []float64
	left     []int32
	right    []int32
	bitmasks [][]uint32

	leafProbability [][]float64
	leafMean        []float64

	importance []float64
	totalGain  float64
}

// NewBuilder reserves cell 0 for the root and returns a Builder ready to
// accept cells/leaves.
func NewBuilder(isClassification bool, numFeatures int) *Builder {
	b := &Builder{
		isClassification: isClassification,
		numFeatures:      numFeatures,
		importance:       make([]float64, numFeatures),
	}
	// cell 0 is reserved for the root; push a placeholder so subsequent
	// NewCell calls start at id 1, matching "left/right <=0 means leaf".
	b.cellType = append(b.cellType, 0)
	b.cellInfo = append(b.cellInfo, 0)
	b.left = append(b.left, 0)
	b.right = append(b.right, 0)
	return b
}

// NewLeaf allocates a new leaf id for a classification probability vector.
func (b *Builder) NewLeaf(probability []float64) int32 {
	b.leafProbability = append(b.leafProbability, probability)
	return int32(len(b.leafProbability) - 1)
}

// NewRegressionLeaf allocates a new leaf id for a regression mean.
func (b *Builder) NewRegressionLeaf(mean float64) int32 {
	b.leafMean = append(b.leafMean, mean)
	return int32(len(b.leafMean) - 1)
}

// NewCell allocates a new internal cell for the given split and returns its
// id. The root split must be written with cellID 0 via WriteRoot instead.
func (b *Builder) NewCell(kind split.Kind, featureIdx int, info float64) int32 {
	id := int32(len(b.cellType))
	b.cellType = append(b.cellType, uint32(kind)<<kindShift|uint32(featureIdx))
	b.cellInfo = append(b.cellInfo, info)
	b.left = append(b.left, 0)
	b.right = append(b.right, 0)
	return id
}

// WriteRoot overwrites the reserved cell 0 once the root's split is known.
func (b *Builder) WriteRoot(kind split.Kind, featureIdx int, info float64) {
	b.cellType[0] = uint32(kind)<<kindShift | uint32(featureIdx)
	b.cellInfo[0] = info
}

// AddBitmask stores a many-vs-many bitmask payload and returns its index,
// to be used as the cell's CellInfo (spec.md §4.4.7).
func (b *Builder) AddBitmask(mask []uint32) float64 {
	b.bitmasks = append(b.bitmasks, mask)
	return float64(len(b.bitmasks) - 1)
}

// SetChildren records a cell's left/right references: positive values are
// child cell ids, non-positive values are -leafID.
func (b *Builder) SetChildren(cell int32, left, right int32) {
	b.left[cell] = left
	b.right[cell] = right
}

// AddImportance accumulates one cell's gain into its feature's running
// importance (spec.md §4.5). tree.Builder keeps one Builder per tree and
// calls this under its mutex, in serial and parallel builds alike.
func (b *Builder) AddImportance(featureIdx int, gain float64) {
	b.importance[featureIdx] += gain
	b.totalGain += gain
}

// MergeImportance folds another worker-local Builder's importance
// accumulator into this one (spec.md §4.7 "reduced at the end").
func (b *Builder) MergeImportance(other *Builder) {
	for i, v := range other.importance {
		b.importance[i] += v
	}
	b.totalGain += other.totalGain
}

// Finish shrinks arrays to actual occupancy, normalizes feature importance,
// and records the loss bookkeeping of spec.md §4.7.
func (b *Builder) Finish(parentCost float64) *Tree {
	importance := make([]float64, len(b.importance))
	if b.totalGain > 0 {
		for i, v := range b.importance {
			importance[i] = v / b.totalGain
		}
	}

	// A tree that never wrote its root is a single leaf: drop the reserved
	// cell 0 placeholder so NumCell reports 0.
	if len(b.cellType) == 1 && split.Kind(b.cellType[0]>>kindShift) == split.Leaf {
		b.cellType, b.cellInfo, b.left, b.right = b.cellType[:0], b.cellInfo[:0], b.left[:0], b.right[:0]
	}

	t := &Tree{
		IsClassification:  b.isClassification,
		CellType:          b.cellType,
		CellInfo:          b.cellInfo,
		Left:              b.left,
		Right:             b.right,
		Bitmasks:          b.bitmasks,
		LeafProbability:   b.leafProbability,
		LeafMean:          b.leafMean,
		FeatureImportance: importance,
	}
	finalLoss := parentCost - b.totalGain
	t.InitLoss = parentCost
	t.FinalLoss = finalLoss
	if parentCost > 0 {
		t.RelativeLossReduction = 1 - finalLoss/parentCost
	}
	return t
}
