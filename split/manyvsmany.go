package split

import (
	"math/bits"
	"math/rand"
	"sort"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/internal/randutil"
)

// MaxNumBinsForBruteSplitter is the spec.md §6 tuning constant selecting
// between the brute bitmask walk and the greedy sampling heuristic.
const MaxNumBinsForBruteSplitter = 8

// MaxNumBinsForSampling bounds the greedy selector's per-round sample
// window (spec.md §6).
const MaxNumBinsForSampling = 16

// searchManyVsMany dispatches to the linear, brute or greedy many-vs-many
// strategy per spec.md §4.4.4-§4.4.6. canUseLinear gates the linear
// strategy: it only applies to binary classification or regression.
func searchManyVsMany(s *dataset.Subset, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int, canUseLinear bool, rng *rand.Rand) (Candidate, bool) {
	agg := gatherBinAggregates(s, featureIdx)
	if agg.numBins <= 1 {
		return Candidate{}, false
	}

	if canUseLinear {
		return searchLinearManyVsMany(agg, featureIdx, stats, costKind, table, minLeafNode)
	}
	if agg.numBins <= MaxNumBinsForBruteSplitter {
		return searchBruteManyVsMany(agg, featureIdx, stats, costKind, table, minLeafNode)
	}
	return searchGreedyManyVsMany(agg, featureIdx, stats, costKind, table, minLeafNode, rng)
}

// searchLinearManyVsMany implements spec.md §4.4.4: order bins by class-1
// fraction (classification) or mean label (regression), then reuse the
// ordinal bucket walk over that order.
func searchLinearManyVsMany(agg *binAggregates, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int) (Candidate, bool) {
	order := orderedBins(agg.numBins)
	keys := make([]float64, agg.numBins)
	for bin := uint32(0); bin < agg.numBins; bin++ {
		if agg.isClass {
			w := agg.weight(bin)
			if w > 0 {
				keys[bin] = agg.classHist[bin][1] / w
			}
		} else if agg.count[bin] > 0 {
			keys[bin] = agg.sum[bin] / agg.count[bin]
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return keys[order[i]] < keys[order[j]] })

	emitKind := kindForBitmask(agg.numBins)
	numBins := agg.numBins
	return searchOrdinalOrder(agg, order, featureIdx, stats, costKind, table, minLeafNode, emitKind, &numBins)
}

// searchBruteManyVsMany implements spec.md §4.4.5: enumerate every
// non-trivial bipartition of ≤8 bins directly (equivalent in result to the
// original's Gray-code incremental walk, recomputed from the per-bin
// aggregates since the search space is tiny).
func searchBruteManyVsMany(agg *binAggregates, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int) (Candidate, bool) {
	n := agg.numBins
	full := uint32(1)<<n - 1

	found := false
	var bestCost float64
	var bestMask uint32

	for mask := uint32(1); mask < full; mask++ {
		if mask&1 == 0 {
			continue // bin 0 fixed into the left set; skips duplicate complements
		}
		leftCost, leftWeight := bruteSideCost(agg, mask, costKind, table)
		rightMask := full &^ mask
		rightCost, rightWeight := bruteSideCost(agg, rightMask, costKind, table)
		if leftWeight < float64(minLeafNode) || rightWeight < float64(minLeafNode) {
			continue
		}
		total := leftCost + rightCost
		if !found || total < bestCost {
			found = true
			bestCost = total
			bestMask = mask
		}
	}

	if !found {
		return Candidate{}, false
	}
	leftSet := make(map[uint32]bool, bits.OnesCount32(bestMask))
	for bin := uint32(0); bin < n; bin++ {
		if bestMask&(1<<bin) != 0 {
			leftSet[bin] = true
		}
	}
	return Candidate{
		Kind:       kindForBitmask(n),
		FeatureIdx: featureIdx,
		Gain:       stats.Cost - bestCost,
		Bitmask:    bitmaskFromSet(n, leftSet),
	}, true
}

func bruteSideCost(agg *binAggregates, mask uint32, costKind cost.Kind, table *cost.NLogNTable) (float64, float64) {
	if agg.isClass {
		hist := make([]float64, agg.numClasses)
		for bin := uint32(0); bin < agg.numBins; bin++ {
			if mask&(1<<bin) == 0 {
				continue
			}
			for c, h := range agg.classHist[bin] {
				hist[c] += h
			}
		}
		var w float64
		for _, h := range hist {
			w += h
		}
		if costKind == cost.Entropy {
			return table.EntropyCost(hist), w
		}
		return cost.GiniCost(hist), w
	}

	var count, sum, sqsum float64
	for bin := uint32(0); bin < agg.numBins; bin++ {
		if mask&(1<<bin) == 0 {
			continue
		}
		count += agg.count[bin]
		sum += agg.sum[bin]
		sqsum += agg.squareSum[bin]
	}
	return cost.VarianceCost(count, sum, sqsum), count
}

// searchGreedyManyVsMany implements spec.md §4.4.6: start with every bin on
// the left; repeatedly sample up to MaxNumBinsForSampling bins still on the
// left (partial Fisher-Yates), evaluate moving each one right, commit the
// best, and exclude it from further rounds. The committed bin's index
// drives both the cost update and the exclusion swap, preserving the
// original's documented heuristic rather than a provably optimal search
// (spec.md §9 open question — left as-is).
func searchGreedyManyVsMany(agg *binAggregates, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int, rng *rand.Rand) (Candidate, bool) {
	n := int(agg.numBins)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}

	leftHist := make([]float64, agg.numClasses)
	var leftCount, leftSum, leftSqSum float64
	if agg.isClass {
		for bin := 0; bin < n; bin++ {
			for c, h := range agg.classHist[bin] {
				leftHist[c] += h
			}
		}
	} else {
		for bin := 0; bin < n; bin++ {
			leftCount += agg.count[bin]
			leftSum += agg.sum[bin]
			leftSqSum += agg.squareSum[bin]
		}
	}
	rightHist := make([]float64, agg.numClasses)
	var rightCount, rightSum, rightSqSum float64

	found := false
	var bestCost float64
	var bestCommitted int // number of bins committed to the right at the best step
	committedBins := make([]uint32, 0, n) // in commit order; infeasible rounds never append here

	frontier := n
	committed := 0
	for frontier > 1 {
		sampleCount := MaxNumBinsForSampling
		if sampleCount > frontier {
			sampleCount = frontier
		}
		randutil.ShufflePrefix(rng, ids[:frontier], sampleCount)

		bestLocal := -1
		var bestLocalCost, bestLocalLeftW, bestLocalRightW float64
		for i := 0; i < sampleCount; i++ {
			bin := ids[i]
			var c float64
			var leftW, rightW float64
			if agg.isClass {
				candLeft := make([]float64, agg.numClasses)
				candRight := make([]float64, agg.numClasses)
				copy(candLeft, leftHist)
				copy(candRight, rightHist)
				for cl, h := range agg.classHist[bin] {
					candLeft[cl] -= h
					candRight[cl] += h
				}
				if costKind == cost.Entropy {
					c = table.EntropyCost(candLeft) + table.EntropyCost(candRight)
				} else {
					c = cost.GiniCost(candLeft) + cost.GiniCost(candRight)
				}
				for _, h := range candLeft {
					leftW += h
				}
				for _, h := range candRight {
					rightW += h
				}
			} else {
				candLeftCount := leftCount - agg.count[bin]
				candLeftSum := leftSum - agg.sum[bin]
				candLeftSq := leftSqSum - agg.squareSum[bin]
				candRightCount := rightCount + agg.count[bin]
				candRightSum := rightSum + agg.sum[bin]
				candRightSq := rightSqSum + agg.squareSum[bin]
				c = cost.VarianceCost(candLeftCount, candLeftSum, candLeftSq) + cost.VarianceCost(candRightCount, candRightSum, candRightSq)
				leftW, rightW = candLeftCount, candRightCount
			}
			if leftW < float64(minLeafNode) || rightW < float64(minLeafNode) {
				continue
			}
			if bestLocal == -1 || c < bestLocalCost {
				bestLocal = i
				bestLocalCost = c
				bestLocalLeftW = leftW
				bestLocalRightW = rightW
			}
		}

		if bestLocal == -1 {
			// no feasible move this round; shrink the sampled window out of
			// play and keep trying with whatever remains
			frontier--
			ids[0], ids[frontier] = ids[frontier], ids[0]
			continue
		}

		bin := ids[bestLocal]
		if agg.isClass {
			for c, h := range agg.classHist[bin] {
				leftHist[c] -= h
				rightHist[c] += h
			}
		} else {
			leftCount -= agg.count[bin]
			leftSum -= agg.sum[bin]
			leftSqSum -= agg.squareSum[bin]
			rightCount += agg.count[bin]
			rightSum += agg.sum[bin]
			rightSqSum += agg.squareSum[bin]
		}
		ids[bestLocal], ids[frontier-1] = ids[frontier-1], ids[bestLocal]
		frontier--
		committed++
		committedBins = append(committedBins, uint32(bin))

		_ = bestLocalLeftW
		_ = bestLocalRightW
		if !found || bestLocalCost < bestCost {
			found = true
			bestCost = bestLocalCost
			bestCommitted = committed
		}
	}

	if !found {
		return Candidate{}, false
	}
	rightBins := make(map[uint32]bool, bestCommitted)
	for _, bin := range committedBins[:bestCommitted] {
		rightBins[bin] = true
	}
	leftSet := make(map[uint32]bool, n-bestCommitted)
	for bin := uint32(0); bin < uint32(n); bin++ {
		if !rightBins[bin] {
			leftSet[bin] = true
		}
	}
	return Candidate{
		Kind:       kindForBitmask(agg.numBins),
		FeatureIdx: featureIdx,
		Gain:       stats.Cost - bestCost,
		Bitmask:    bitmaskFromSet(agg.numBins, leftSet),
	}, true
}
