// Package storedtree implements the compact, read-optimized tree
// representation of spec.md §3/§4.7/§6: flat parallel arrays a predictor
// walks without touching the training-time node arena at all.
package storedtree

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/errs"
	"github.com/copse-ml/copse/split"
)

// kindShift/featureMask pack a cell's split kind and feature index into one
// uint32, as spec.md §3 describes: "upper byte = split kind, lower 24 bits
// = feature index".
const (
	kindShift   = 24
	featureMask = 1<<kindShift - 1
)

// Tree is the finalized, immutable stored tree. Zero value is not usable;
// build one with a Builder.
type Tree struct {
	IsClassification bool

	CellType []uint32  // kind<<24 | feature_idx, per internal cell
	CellInfo []float64 // threshold, bin id, or bitmask-slice index
	Left     []int32   // >0: child cell id; <=0: leaf id = -Left[i]
	Right    []int32

	Bitmasks [][]uint32 // LowCardinality/HighCardinality payloads, indexed by CellInfo

	LeafProbability [][]float64 // classification
	LeafMean        []float64   // regression

	FeatureImportance []float64 // normalized, sums to 1 (or all-zero if total_gain == 0)

	InitLoss              float64
	FinalLoss             float64
	RelativeLossReduction float64
}

// NumCell returns the number of internal cells.
func (t *Tree) NumCell() int { return len(t.CellType) }

// NumLeaf returns the number of leaves.
func (t *Tree) NumLeaf() int {
	if t.IsClassification {
		return len(t.LeafProbability)
	}
	return len(t.LeafMean)
}

// Predict walks from cell 0 applying each cell's split rule to sampleID,
// using the exact discriminator semantics of spec.md §4.1/§6 so that
// training-time partitioning and prediction-time navigation never diverge.
func (t *Tree) Predict(ds *dataset.Dataset, sampleID uint32) (leafID int32, err error) {
	if t.NumCell() == 0 {
		return 0, errs.New(errs.InvalidInput, "stored tree has no cells")
	}
	cell := int32(0)
	for {
		if int(cell) >= len(t.CellType) {
			errs.Internal("predict: cell id %d out of range", cell)
		}
		kind := split.Kind(t.CellType[cell] >> kindShift)
		featureIdx := int(t.CellType[cell] & featureMask)
		goLeft, err := t.goLeft(ds, sampleID, cell, kind, featureIdx)
		if err != nil {
			return 0, err
		}
		next := t.Right[cell]
		if goLeft {
			next = t.Left[cell]
		}
		if next <= 0 {
			return -next, nil
		}
		cell = next
	}
}

func (t *Tree) goLeft(ds *dataset.Dataset, sampleID uint32, cell int32, kind split.Kind, featureIdx int) (bool, error) {
	info := t.CellInfo[cell]
	switch kind {
	case split.Continuous:
		return ds.ContinuousValue(featureIdx, sampleID) < info, nil
	case split.Ordinal:
		return ds.DiscreteValue(featureIdx, sampleID) <= uint32(info), nil
	case split.OneVsAll:
		return ds.DiscreteValue(featureIdx, sampleID) == uint32(info), nil
	case split.LowCardinality:
		bin := ds.DiscreteValue(featureIdx, sampleID)
		mask := t.Bitmasks[int(info)]
		return mask[0]&(1<<bin) != 0, nil
	case split.HighCardinality:
		bin := ds.DiscreteValue(featureIdx, sampleID)
		mask := t.Bitmasks[int(info)]
		w, b := bin>>5, bin&31
		return mask[w]&(1<<b) != 0, nil
	default:
		errs.Internal("predict: unknown split kind %v at cell %d", kind, cell)
		return false, nil
	}
}

// PredictedClass returns the argmax class of a classification leaf's
// probability vector (testable property 9).
func (t *Tree) PredictedClass(leafID int32) int {
	probs := t.LeafProbability[leafID]
	best, bestP := 0, -1.0
	for c, p := range probs {
		if p > bestP {
			best, bestP = c, p
		}
	}
	return best
}

// Dump writes a human-readable recursive rendering of the tree, grounded on
// the teacher's String()/subtreeString debug helper.
func (t *Tree) Dump(w io.Writer) {
	if t.NumCell() == 0 {
		fmt.Fprintln(w, "<empty tree>")
		return
	}
	t.dumpCell(w, 0, 0)
}

func (t *Tree) dumpCell(w io.Writer, cell int32, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	// A child ref <= 0 is a leaf; only the depth-0 call names cell 0 itself.
	if cell < 0 || (cell == 0 && depth > 0) {
		leaf := -cell
		if t.IsClassification {
			fmt.Fprintf(w, "%sleaf[%d] probability=%v\n", indent, leaf, t.LeafProbability[leaf])
		} else {
			fmt.Fprintf(w, "%sleaf[%d] mean=%v\n", indent, leaf, t.LeafMean[leaf])
		}
		return
	}
	kind := split.Kind(t.CellType[cell] >> kindShift)
	featureIdx := int(t.CellType[cell] & featureMask)
	fmt.Fprintf(w, "%scell[%d] feature=%d kind=%v info=%v\n", indent, cell, featureIdx, kind, t.CellInfo[cell])
	t.dumpCell(w, t.Left[cell], depth+1)
	t.dumpCell(w, t.Right[cell], depth+1)
}

// bitmaskPopcount returns the number of bins set in a bitmask.
func bitmaskPopcount(mask []uint32) int {
	var n int
	for _, w := range mask {
		n += bits.OnesCount32(w)
	}
	return n
}
