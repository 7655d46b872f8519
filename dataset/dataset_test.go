package dataset

import "testing"

// newClassificationDataset builds a tiny 1-continuous-feature, 2-class
// dataset with default (all-1) sample weights, mirroring the small fixed
// fixtures wlattner-rf's tree/split_test.go uses.
func newClassificationDataset(t *testing.T) *Dataset {
	t.Helper()
	ds := New()
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.7, 0.8, 0.9, 1.0}
	labels := []uint32{0, 0, 0, 0, 1, 1, 1, 1}
	if err := ds.AddContinuousFeature(values); err != nil {
		t.Fatalf("AddContinuousFeature: %v", err)
	}
	if err := ds.AddClassificationLabel(labels, 2); err != nil {
		t.Fatalf("AddClassificationLabel: %v", err)
	}
	if err := ds.AddDefaultSampleWeights(); err != nil {
		t.Fatalf("AddDefaultSampleWeights: %v", err)
	}
	if err := ds.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return ds
}

func TestMakeRootExcludesZeroWeightSamples(t *testing.T) {
	ds := New()
	if err := ds.AddContinuousFeature([]float64{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddClassificationLabel([]uint32{0, 1, 0, 1}, 2); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddSampleWeights([]uint32{1, 0, 1, 0}); err != nil {
		t.Fatal(err)
	}

	root := MakeRoot(ds)
	if root.Size() != 2 {
		t.Fatalf("expected 2 samples to survive zero-weighting, got %d", root.Size())
	}
	for i, id := range root.SampleIDs {
		if i > 0 && root.SampleIDs[i-1] >= id {
			t.Fatalf("SampleIDs must be strictly ascending, got %v", root.SampleIDs)
		}
	}
}

func TestMakeBootstrapHonorsWeights(t *testing.T) {
	ds := newClassificationDataset(t)
	weights := []uint32{2, 0, 1, 0, 0, 3, 0, 1}
	boot := MakeBootstrap(ds, weights)
	if boot.Size() != 4 {
		t.Fatalf("expected 4 samples with nonzero bootstrap weight, got %d", boot.Size())
	}
	total := boot.WeightedSize()
	if total != 7 {
		t.Fatalf("expected weighted size 7 (2+1+3+1), got %d", total)
	}
}

func TestSubsetSortIsNonDecreasing(t *testing.T) {
	ds := newClassificationDataset(t)
	root := MakeRoot(ds)
	order := root.Sort(0)
	if len(order) != root.Size() {
		t.Fatalf("expected sorted order of length %d, got %d", root.Size(), len(order))
	}
	for k := 1; k < len(order); k++ {
		prevID := root.SampleIDs[order[k-1]]
		curID := root.SampleIDs[order[k]]
		if ds.ContinuousValue(0, prevID) > ds.ContinuousValue(0, curID) {
			t.Fatalf("sorted order is not non-decreasing at position %d", k)
		}
	}
}

func TestSubsetFromAncestorMatchesDirectSort(t *testing.T) {
	ds := newClassificationDataset(t)
	root := MakeRoot(ds)
	root.Sort(0) // cache the ancestor order

	left, right := root.Partition(thresholdDiscriminator{featureIdx: 0, threshold: 0.5})
	left.SubsetFromAncestor(root, 0)
	right.SubsetFromAncestor(root, 0)

	for _, child := range []*Subset{left, right} {
		direct := &Subset{Dataset: ds, SampleIDs: child.SampleIDs, Labels: child.Labels, Weights: child.Weights, sortedIdx: map[int][]uint32{}, trios: map[int]*trio{}}
		want := direct.Sort(0)
		got := child.Sort(0) // already cached by SubsetFromAncestor; Sort just returns it
		if len(got) != len(want) {
			t.Fatalf("ancestor-derived order length %d != direct sort length %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("ancestor-derived order diverges from direct sort at %d: %d != %d", i, got[i], want[i])
			}
		}
	}
}

func TestPartitionPreservesSampleCountAndOrder(t *testing.T) {
	ds := newClassificationDataset(t)
	root := MakeRoot(ds)
	left, right := root.Partition(thresholdDiscriminator{featureIdx: 0, threshold: 0.5})

	if left.Size()+right.Size() != root.Size() {
		t.Fatalf("partition lost or duplicated samples: %d + %d != %d", left.Size(), right.Size(), root.Size())
	}
	for _, child := range []*Subset{left, right} {
		for i := 1; i < len(child.SampleIDs); i++ {
			if child.SampleIDs[i-1] >= child.SampleIDs[i] {
				t.Fatalf("child SampleIDs must stay strictly ascending, got %v", child.SampleIDs)
			}
		}
	}
}

func TestDiscardSubsetClearsState(t *testing.T) {
	ds := newClassificationDataset(t)
	// Gather reads a categorical column, so add one next to the continuous
	// feature 0.
	if err := ds.AddDiscreteFeature(Ordinal, []uint32{0, 0, 0, 0, 1, 1, 1, 1}, 2); err != nil {
		t.Fatal(err)
	}
	root := MakeRoot(ds)
	root.Sort(0)
	root.Gather(1)
	root.DiscardSubset()
	if root.Size() != 0 {
		t.Errorf("expected Size 0 after DiscardSubset, got %d", root.Size())
	}
	if root.HasSortedIdx(0) {
		t.Errorf("expected sorted order to be cleared after DiscardSubset")
	}
}

// thresholdDiscriminator is a minimal Discriminator for testing Partition
// without depending on the split package's SplitInfo.
type thresholdDiscriminator struct {
	featureIdx int
	threshold  float64
}

func (d thresholdDiscriminator) GoLeft(ds *Dataset, sampleID uint32) bool {
	return ds.ContinuousValue(d.featureIdx, sampleID) < d.threshold
}
