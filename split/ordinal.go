package split

import (
	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
)

// searchOrdinal implements spec.md §4.4.2: walk bins in natural order,
// moving each bin's whole mass in one step, tracking the best feasible
// ceiling.
func searchOrdinal(s *dataset.Subset, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int) (Candidate, bool) {
	agg := gatherBinAggregates(s, featureIdx)
	return searchOrdinalOrder(agg, orderedBins(agg.numBins), featureIdx, stats, costKind, table, minLeafNode, Ordinal, nil)
}

// orderedBins returns [0, 1, ..., numBins-1], the natural order ordinal
// search walks; linear many-vs-many reorders bins by class-1 fraction or
// mean label and reuses the same walk.
func orderedBins(numBins uint32) []uint32 {
	order := make([]uint32, numBins)
	for i := range order {
		order[i] = uint32(i)
	}
	return order
}

// searchOrdinalOrder runs the bucket-walk over an arbitrary bin order,
// shared by Ordinal (natural order) and Linear many-vs-many (fraction/mean
// order). emitKind selects Ordinal vs. LowCardinality/HighCardinality
// payload shape; bitmaskSize is only consulted for the latter.
func searchOrdinalOrder(agg *binAggregates, order []uint32, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int, emitKind Kind, bitmaskSize *uint32) (Candidate, bool) {
	var cu classUpdater
	var ru regUpdater
	if agg.isClass {
		if costKind == cost.Entropy {
			cu = cost.NewEntropyUpdater(stats.Histogram, table)
		} else {
			cu = cost.NewGiniUpdater(stats.Histogram)
		}
	} else {
		ru = cost.NewVarianceUpdater(float64(stats.NumSamples), stats.Sum, stats.SquareSum)
	}

	found := false
	var bestCost float64
	bestCeilingPos := -1

	for pos, bin := range order {
		if pos == len(order)-1 {
			break // moving the last bin leaves nothing on the right
		}
		var feasible bool
		var curCost float64
		if agg.isClass {
			for class, h := range agg.classHist[bin] {
				if h != 0 {
					cu.MoveOneUnit(class, h)
				}
			}
			feasible = cu.LeftWeight() >= float64(minLeafNode) && cu.RightWeight() >= float64(minLeafNode)
			curCost = cu.Cost()
		} else {
			ru.MoveBulk(agg.count[bin], agg.sum[bin], agg.squareSum[bin])
			feasible = ru.LeftCount() >= float64(minLeafNode) && ru.RightCount() >= float64(minLeafNode)
			curCost = ru.Cost()
		}
		if feasible && (!found || curCost < bestCost) {
			found = true
			bestCost = curCost
			bestCeilingPos = pos
		}
	}

	if !found {
		return Candidate{}, false
	}
	c := Candidate{Kind: emitKind, FeatureIdx: featureIdx, Gain: stats.Cost - bestCost}
	if emitKind == Ordinal {
		c.Bin = order[bestCeilingPos]
	} else {
		leftSet := make(map[uint32]bool, bestCeilingPos+1)
		for _, b := range order[:bestCeilingPos+1] {
			leftSet[b] = true
		}
		c.Bitmask = bitmaskFromSet(*bitmaskSize, leftSet)
	}
	return c, true
}
