// Package split implements the per-feature split search algorithms of
// spec.md §4.4: the linear continuous scan, ordinal bucket walk, one-vs-all
// scan, and the three many-vs-many strategies (linear, brute bitmask,
// greedy sampling), fanning their candidates into one node's SplitInfo.
package split

import (
	"sync"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
)

// Kind tags the decision a SplitInfo represents; it packs into the upper
// byte of a StoredTree cell_type (spec.md §3/§4.7).
type Kind uint8

const (
	Leaf Kind = iota
	Continuous
	Ordinal
	OneVsAll
	LowCardinality
	HighCardinality
)

func (k Kind) String() string {
	switch k {
	case Leaf:
		return "leaf"
	case Continuous:
		return "continuous"
	case Ordinal:
		return "ordinal"
	case OneVsAll:
		return "one_vs_all"
	case LowCardinality:
		return "low_cardinality"
	case HighCardinality:
		return "high_cardinality"
	default:
		return "unknown"
	}
}

// SplitInfo is a node's best-known split: a tagged payload plus bookkeeping
// for parallel-split fan-in (spec.md §3, §4.6). The zero value is "no split
// found yet" (Kind Leaf, Gain 0).
type SplitInfo struct {
	mu sync.Mutex

	Kind       Kind
	FeatureIdx int
	Gain       float64

	// Payload — exactly one of these is meaningful, selected by Kind.
	Threshold float64  // Continuous
	Bin       uint32   // Ordinal (ceiling bin), OneVsAll (chosen bin)
	Bitmask   []uint32 // LowCardinality/HighCardinality, one bit per feature bin

	NumUpdates    int // how many per-feature searches have reported, parallel-split mode
	TargetUpdates int // num_features_for_split sampled for this node
}

// Candidate is one feature search's proposed split, reported into a node's
// shared SplitInfo via Merge.
type Candidate struct {
	Kind       Kind
	FeatureIdx int
	Gain       float64
	Threshold  float64
	Bin        uint32
	Bitmask    []uint32
}

// NewSplitInfo returns an empty SplitInfo awaiting targetUpdates reports
// (1 in serial mode, num_features_for_split in parallel-split mode).
func NewSplitInfo(targetUpdates int) *SplitInfo {
	return &SplitInfo{Kind: Leaf, TargetUpdates: targetUpdates}
}

// Merge atomically folds a candidate into the node's SplitInfo if it beats
// the current gain by more than cost.FloatError (spec.md §4.4), and reports
// whether all expected per-feature searches have now reported in — the
// caller should call FinishUpdate exactly once, when this returns true.
func (s *SplitInfo) Merge(c Candidate) (allReported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Gain > s.Gain+cost.FloatError {
		s.Kind = c.Kind
		s.FeatureIdx = c.FeatureIdx
		s.Gain = c.Gain
		s.Threshold = c.Threshold
		s.Bin = c.Bin
		s.Bitmask = c.Bitmask
	}
	s.NumUpdates++
	return s.NumUpdates >= s.TargetUpdates
}

// FinishUpdate demotes the split to Leaf if its gain never cleared the
// epsilon (spec.md §4.4.8, §4.4 invariant 4).
func (s *SplitInfo) FinishUpdate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Gain < cost.FloatError {
		s.Kind = Leaf
	}
}

// GoLeft implements dataset.Discriminator, matching the navigation rule a
// StoredTree consumer must use at predict time (spec.md §4.1, §6).
func (s *SplitInfo) GoLeft(ds *dataset.Dataset, sampleID uint32) bool {
	switch s.Kind {
	case Continuous:
		return ds.ContinuousValue(s.FeatureIdx, sampleID) < s.Threshold
	case Ordinal:
		return ds.DiscreteValue(s.FeatureIdx, sampleID) <= s.Bin
	case OneVsAll:
		return ds.DiscreteValue(s.FeatureIdx, sampleID) == s.Bin
	case LowCardinality:
		bin := ds.DiscreteValue(s.FeatureIdx, sampleID)
		return s.Bitmask[0]&(1<<bin) != 0
	case HighCardinality:
		bin := ds.DiscreteValue(s.FeatureIdx, sampleID)
		w, b := bin>>5, bin&31
		return s.Bitmask[w]&(1<<b) != 0
	default:
		return false
	}
}

// bitmaskFromSet builds a word-array bitmask of ceil(numBins/32) words with
// one bit set per bin in the left set (spec.md §4.4.7).
func bitmaskFromSet(numBins uint32, leftBins map[uint32]bool) []uint32 {
	words := (numBins + 31) / 32
	mask := make([]uint32, words)
	for bin := range leftBins {
		mask[bin>>5] |= 1 << (bin & 31)
	}
	return mask
}

func kindForBitmask(numBins uint32) Kind {
	if numBins <= 32 {
		return LowCardinality
	}
	return HighCardinality
}
