package split

import (
	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
)

// searchOneVsAll implements spec.md §4.4.3: for each bin, evaluate "this
// bin vs. everything else" directly (no incremental walk — each bin is an
// independent candidate).
func searchOneVsAll(s *dataset.Subset, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int) (Candidate, bool) {
	agg := gatherBinAggregates(s, featureIdx)

	found := false
	var bestCost float64
	var bestBin uint32

	for bin := uint32(0); bin < agg.numBins; bin++ {
		var binCost, restCost, binWeight, restWeight float64
		if agg.isClass {
			rest := make([]float64, agg.numClasses)
			for c, h := range stats.Histogram {
				rest[c] = h - agg.classHist[bin][c]
			}
			if costKind == cost.Entropy {
				binCost = table.EntropyCost(agg.classHist[bin])
				restCost = table.EntropyCost(rest)
			} else {
				binCost = cost.GiniCost(agg.classHist[bin])
				restCost = cost.GiniCost(rest)
			}
			for _, h := range agg.classHist[bin] {
				binWeight += h
			}
			restWeight = float64(stats.NumSamples) - binWeight
			if stats.IsClassification {
				restWeight = stats.WNumSamples - binWeight
			}
		} else {
			binCost = cost.VarianceCost(agg.count[bin], agg.sum[bin], agg.squareSum[bin])
			restCount := float64(stats.NumSamples) - agg.count[bin]
			restSum := stats.Sum - agg.sum[bin]
			restSqSum := stats.SquareSum - agg.squareSum[bin]
			restCost = cost.VarianceCost(restCount, restSum, restSqSum)
			binWeight = agg.count[bin]
			restWeight = restCount
		}

		if binWeight < float64(minLeafNode) || restWeight < float64(minLeafNode) {
			continue
		}
		total := binCost + restCost
		if !found || total < bestCost {
			found = true
			bestCost = total
			bestBin = bin
		}
	}

	if !found {
		return Candidate{}, false
	}
	return Candidate{
		Kind:       OneVsAll,
		FeatureIdx: featureIdx,
		Gain:       stats.Cost - bestCost,
		Bin:        bestBin,
	}, true
}
