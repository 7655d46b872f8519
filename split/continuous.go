package split

import (
	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
)

// classUpdater and regUpdater narrow cost's updater interfaces to what the
// scanners below need, so each scanner is agnostic to which cost function
// backs it.
type classUpdater interface {
	MoveOneUnit(class int, weight float64)
	Cost() float64
	LeftWeight() float64
	RightWeight() float64
}

type regUpdater interface {
	MoveOneUnit(y, weight float64)
	MoveBulk(count, sum, squareSum float64)
	Cost() float64
	LeftCount() float64
	RightCount() float64
}

func newClassUpdater(stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable) classUpdater {
	if costKind == cost.Entropy {
		return cost.NewEntropyUpdater(stats.Histogram, table)
	}
	return cost.NewGiniUpdater(stats.Histogram)
}

func newRegUpdater(stats *dataset.NodeStats) regUpdater {
	return cost.NewVarianceUpdater(float64(stats.NumSamples), stats.Sum, stats.SquareSum)
}

// searchContinuous implements spec.md §4.4.1: walk the sorted sample order,
// moving one sample at a time from the not-yet-visited side to the visited
// side, tracking the lowest feasible incremental cost across every
// distinct-value boundary.
func searchContinuous(s *dataset.Subset, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int) (Candidate, bool) {
	ds := s.Dataset
	order := s.Sort(featureIdx)
	n := len(order)
	if n < 2 {
		return Candidate{}, false
	}

	isClass := ds.IsClassification()
	var cu classUpdater
	var ru regUpdater
	if isClass {
		cu = newClassUpdater(stats, costKind, table)
	} else {
		ru = newRegUpdater(stats)
	}

	bestCost := stats.Cost
	found := false
	var bestThreshold float64

	for k := 0; k < n-1; k++ {
		localIdx := order[k]
		sampleID := s.SampleIDs[localIdx]
		weight := float64(s.Weights[localIdx])

		var feasible bool
		var curCost float64
		if isClass {
			class := int(s.Labels[localIdx])
			cu.MoveOneUnit(class, weight*ds.ClassWeight(uint32(class)))
			feasible = cu.LeftWeight() >= float64(minLeafNode) && cu.RightWeight() >= float64(minLeafNode)
			curCost = cu.Cost()
		} else {
			y := s.Labels[localIdx]
			ru.MoveOneUnit(y, weight)
			feasible = ru.LeftCount() >= float64(minLeafNode) && ru.RightCount() >= float64(minLeafNode)
			curCost = ru.Cost()
		}

		vK := ds.ContinuousValue(featureIdx, sampleID)
		nextID := s.SampleIDs[order[k+1]]
		vNext := ds.ContinuousValue(featureIdx, nextID)
		if vK == vNext {
			continue
		}
		if !feasible {
			continue
		}
		if !found || curCost < bestCost {
			found = true
			bestCost = curCost
			bestThreshold = (vK + vNext) / 2
		}
	}

	if !found {
		return Candidate{}, false
	}
	return Candidate{
		Kind:       Continuous,
		FeatureIdx: featureIdx,
		Gain:       stats.Cost - bestCost,
		Threshold:  bestThreshold,
	}, true
}
