package split

import (
	"math/rand"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
)

// FindBest runs the split search for one feature of one node and returns
// its best candidate, per spec.md §4.4. ok is false when no split on this
// feature satisfies min_leaf_node on both sides.
func FindBest(s *dataset.Subset, featureIdx int, stats *dataset.NodeStats, costKind cost.Kind, table *cost.NLogNTable, minLeafNode int, rng *rand.Rand) (Candidate, bool) {
	ds := s.Dataset
	switch ds.FeatureType(featureIdx) {
	case dataset.Continuous:
		return searchContinuous(s, featureIdx, stats, costKind, table, minLeafNode)
	case dataset.Ordinal:
		return searchOrdinal(s, featureIdx, stats, costKind, table, minLeafNode)
	case dataset.OneVsAll:
		return searchOneVsAll(s, featureIdx, stats, costKind, table, minLeafNode)
	case dataset.ManyVsMany:
		canUseLinear := !ds.IsClassification() || ds.NumClasses() == 2
		return searchManyVsMany(s, featureIdx, stats, costKind, table, minLeafNode, canUseLinear, rng)
	default:
		return Candidate{}, false
	}
}
