package dataset

import (
	"sort"

	"github.com/copse-ml/copse/errs"
)

// Discriminator decides, for a chosen split, which side a sample id falls
// on. split.SplitInfo implements this; Subset.Partition depends only on
// this small interface so the dataset package never has to import split,
// matching the navigation contract of spec.md §6 (the StoredTree consumer
// uses the identical go_left rule at predict time).
type Discriminator interface {
	GoLeft(ds *Dataset, sampleID uint32) bool
}

// trio bundles, per feature, the caches described in spec.md's glossary:
// a gathered discrete column for categorical split search, or nothing yet
// for continuous (the sorted order itself is cache enough there).
type trio struct {
	bins []uint32
}

// Subset is the node-local restriction of a Dataset to the sample ids
// that survive into one tree node, per spec.md §3.
type Subset struct {
	Dataset *Dataset

	SampleIDs []uint32 // strictly ascending
	Labels    []float64
	Weights   []uint32

	sortedIdx map[int][]uint32 // feature_idx -> permutation over [0, size)
	trios     map[int]*trio
}

// Size returns the number of samples in the subset.
func (s *Subset) Size() int { return len(s.SampleIDs) }

// WeightedSize returns Σ Weights, the size a classification cost measures
// min_leaf_node / min_split_node against (spec.md §9 open-question
// decision: weighted minima for classification).
func (s *Subset) WeightedSize() int {
	var n int
	for _, w := range s.Weights {
		n += int(w)
	}
	return n
}

// MakeRoot collects every sample with sample_weights[i] > 0 into the root
// Subset, in original order — guaranteeing SampleIDs is strictly
// ascending (spec.md §4.1).
func MakeRoot(ds *Dataset) *Subset {
	s := &Subset{
		Dataset:   ds,
		sortedIdx: make(map[int][]uint32),
		trios:     make(map[int]*trio),
	}
	for i := 0; i < ds.size; i++ {
		w := ds.sampleWeights[i]
		if w == 0 {
			continue
		}
		s.SampleIDs = append(s.SampleIDs, uint32(i))
		s.Weights = append(s.Weights, w)
		if ds.IsClassification() {
			s.Labels = append(s.Labels, float64(ds.classLabels[i]))
		} else {
			s.Labels = append(s.Labels, ds.regLabels[i])
		}
	}
	return s
}

// MakeBootstrap collects samples into a tree-local root Subset using an
// externally supplied weight vector instead of the Dataset's own
// sample_weights — ForestTrainer's per-tree with-replacement bootstrap
// resampling (spec.md §6 ForestTrainer). The Dataset's own sample_weights
// are not consulted: a sample they exclude (weight 0) stays out only
// because callers derive bootstrapWeights over the population MakeRoot
// already admitted.
func MakeBootstrap(ds *Dataset, bootstrapWeights []uint32) *Subset {
	s := &Subset{
		Dataset:   ds,
		sortedIdx: make(map[int][]uint32),
		trios:     make(map[int]*trio),
	}
	for i := 0; i < ds.size; i++ {
		w := bootstrapWeights[i]
		if w == 0 {
			continue
		}
		s.SampleIDs = append(s.SampleIDs, uint32(i))
		s.Weights = append(s.Weights, w)
		if ds.IsClassification() {
			s.Labels = append(s.Labels, float64(ds.classLabels[i]))
		} else {
			s.Labels = append(s.Labels, ds.regLabels[i])
		}
	}
	return s
}

// Gather copies the values of a categorical feature at SampleIDs into the
// node-local trio, caching the result.
func (s *Subset) Gather(featureIdx int) []uint32 {
	if t, ok := s.trios[featureIdx]; ok && t.bins != nil {
		return t.bins
	}
	col := s.Dataset.column(featureIdx)
	bins := make([]uint32, len(s.SampleIDs))
	for i, id := range s.SampleIDs {
		bins[i] = col.Bins[id]
	}
	s.trios[featureIdx] = &trio{bins: bins}
	return bins
}

// valueIdxPair pairs a feature value with its local index, sorted stably
// by value — memory-locality favors this over sorting an index array
// through an indirect comparator (spec.md §4.1 implementation hint).
type valueIdxPair struct {
	val float64
	idx uint32
}

// Sort produces a permutation sortedIdx over [0, size) such that
// feature[sample_ids[sorted_idx[k]]] is non-decreasing, and caches it.
func (s *Subset) Sort(featureIdx int) []uint32 {
	if idx, ok := s.sortedIdx[featureIdx]; ok {
		return idx
	}
	col := s.Dataset.column(featureIdx)
	n := len(s.SampleIDs)
	pairs := make([]valueIdxPair, n)
	for i, id := range s.SampleIDs {
		pairs[i] = valueIdxPair{val: col.Floats[id], idx: uint32(i)}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].val < pairs[j].val })
	idx := make([]uint32, n)
	for i, p := range pairs {
		idx[i] = p.idx
	}
	s.sortedIdx[featureIdx] = idx
	return idx
}

// SubsetFromAncestor produces a sorted order for this subset's feature by
// a linear two-pointer walk over an ancestor's sorted order, rather than
// sorting from scratch (spec.md §4.1/§4.5). Precondition: both
// ancestor.SampleIDs and s.SampleIDs are ascending.
func (s *Subset) SubsetFromAncestor(ancestor *Subset, featureIdx int) []uint32 {
	ancestorSorted := ancestor.Sort(featureIdx)
	// position map: dataset sample id -> local position within s
	pos := make(map[uint32]uint32, len(s.SampleIDs))
	for i, id := range s.SampleIDs {
		pos[id] = uint32(i)
	}
	idx := make([]uint32, 0, len(s.SampleIDs))
	for _, ancLocal := range ancestorSorted {
		ancID := ancestor.SampleIDs[ancLocal]
		if localIdx, ok := pos[ancID]; ok {
			idx = append(idx, localIdx)
		}
	}
	if len(idx) != len(s.SampleIDs) {
		errs.Internal("SubsetFromAncestor produced %d indices, expected %d", len(idx), len(s.SampleIDs))
	}
	s.sortedIdx[featureIdx] = idx
	return idx
}

// SubsetFromPresorted is SubsetFromAncestor's whole-dataset counterpart:
// the "ancestor" is the entire dataset and a pre-computed global sorted
// index (built once per forest, spec.md §6 ForestTrainer) is consulted.
func (s *Subset) SubsetFromPresorted(presorted []uint32, featureIdx int) []uint32 {
	pos := make(map[uint32]uint32, len(s.SampleIDs))
	for i, id := range s.SampleIDs {
		pos[id] = uint32(i)
	}
	idx := make([]uint32, 0, len(s.SampleIDs))
	for _, globalID := range presorted {
		if localIdx, ok := pos[globalID]; ok {
			idx = append(idx, localIdx)
		}
	}
	if len(idx) != len(s.SampleIDs) {
		errs.Internal("SubsetFromPresorted produced %d indices, expected %d", len(idx), len(s.SampleIDs))
	}
	s.sortedIdx[featureIdx] = idx
	return idx
}

// HasSortedIdx reports whether featureIdx's sorted order is currently
// cached (not yet discarded).
func (s *Subset) HasSortedIdx(featureIdx int) bool {
	_, ok := s.sortedIdx[featureIdx]
	return ok
}

// Partition classifies each (sample_id, label, sample_weight) row by the
// discriminator and appends it to left/right child Subsets, preserving
// original order so children also have ascending SampleIDs (spec.md
// §4.1, invariants 1-2).
func (s *Subset) Partition(d Discriminator) (left, right *Subset) {
	left = &Subset{Dataset: s.Dataset, sortedIdx: make(map[int][]uint32), trios: make(map[int]*trio)}
	right = &Subset{Dataset: s.Dataset, sortedIdx: make(map[int][]uint32), trios: make(map[int]*trio)}
	for i, id := range s.SampleIDs {
		if d.GoLeft(s.Dataset, id) {
			left.SampleIDs = append(left.SampleIDs, id)
			left.Labels = append(left.Labels, s.Labels[i])
			left.Weights = append(left.Weights, s.Weights[i])
		} else {
			right.SampleIDs = append(right.SampleIDs, id)
			right.Labels = append(right.Labels, s.Labels[i])
			right.Weights = append(right.Weights, s.Weights[i])
		}
	}
	if len(left.SampleIDs)+len(right.SampleIDs) != len(s.SampleIDs) {
		errs.Internal("partition lost samples: %d + %d != %d", len(left.SampleIDs), len(right.SampleIDs), len(s.SampleIDs))
	}
	return left, right
}

// DiscardSortedIdx releases the cached sorted order for one feature.
func (s *Subset) DiscardSortedIdx(featureIdx int) {
	delete(s.sortedIdx, featureIdx)
}

// DiscardTemporaryElements releases every per-feature trio cached while
// searching this node's best split, once the split has been decided and
// the node is partitioned (spec.md §4.5 memory lifecycle). Cached sorted
// orders are kept so descendants can subset from them; DiscardSortedIdx
// and DiscardSubset release those. Labels/Weights survive only as long as the node itself
// needs them for stats; callers discard the whole Subset via
// DiscardSubset once descendants are processed.
func (s *Subset) DiscardTemporaryElements() {
	s.trios = make(map[int]*trio)
}

// DiscardSubset releases everything: called once this node and all of
// its descendants have been processed (spec.md §3 TreeNode lifecycle).
func (s *Subset) DiscardSubset() {
	s.SampleIDs = nil
	s.Labels = nil
	s.Weights = nil
	s.sortedIdx = nil
	s.trios = nil
}
