package dataset

import (
	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/errs"
)

// NodeStats summarizes a Subset at a tree node: the classification
// histogram (or regression sum/square_sum) plus the node's own cost,
// per spec.md §4.2.
type NodeStats struct {
	IsClassification bool

	// Classification fields.
	Histogram   []float64 // per-class weighted count
	WNumSamples float64

	// Regression fields.
	Sum       float64
	SquareSum float64

	NumSamples int // Σ weights, both kinds
	Cost       float64
}

// Splittable reports whether a node with these stats, at the given depth,
// may still be split: positive cost, depth under the ceiling, and enough
// samples to satisfy min_split_node. Classification measures min_split_node
// against the weighted count; regression against the plain sample count
// (spec.md open-question decision, recorded in SPEC_FULL.md §12).
func (s *NodeStats) Splittable(depth, maxDepth, minSplitNode int) bool {
	if s.Cost <= 0 {
		return false
	}
	if maxDepth >= 0 && depth >= maxDepth {
		return false
	}
	measured := s.NumSamples
	if s.IsClassification {
		measured = int(s.WNumSamples)
	}
	return measured >= minSplitNode
}

// ComputeStats builds NodeStats for a Subset. table is only consulted for
// cost.Entropy; pass nil for cost.Gini/cost.Variance.
func ComputeStats(s *Subset, costKind cost.Kind, table *cost.NLogNTable) (*NodeStats, error) {
	ds := s.Dataset
	stats := &NodeStats{IsClassification: ds.IsClassification(), NumSamples: s.WeightedSize()}
	if ds.IsClassification() {
		hist := make([]float64, ds.NumClasses())
		for i, id := range s.SampleIDs {
			c := ds.ClassLabel(id)
			hist[c] += float64(s.Weights[i]) * ds.ClassWeight(c)
		}
		stats.Histogram = hist
		var w float64
		for _, h := range hist {
			w += h
		}
		stats.WNumSamples = w
		switch costKind {
		case cost.Gini:
			stats.Cost = cost.GiniCost(hist)
		case cost.Entropy:
			if table == nil {
				return nil, errs.New(errs.InvalidInput, "entropy cost requires an NLogN table")
			}
			stats.Cost = table.EntropyCost(hist)
		default:
			return nil, errs.New(errs.InvalidInput, "unsupported classification cost kind %v", costKind)
		}
		return stats, nil
	}

	var n, sum, sqsum float64
	for i, id := range s.SampleIDs {
		w := float64(s.Weights[i])
		y := ds.RegLabel(id)
		n += w
		sum += w * y
		sqsum += w * y * y
	}
	stats.Sum = sum
	stats.SquareSum = sqsum
	stats.Cost = cost.VarianceCost(n, sum, sqsum)
	return stats, nil
}
