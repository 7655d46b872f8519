package schedule

import (
	"testing"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/tree"
)

func separableDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New()
	values := []float64{0.1, 0.15, 0.2, 0.25, 0.8, 0.85, 0.9, 0.95}
	labels := []uint32{0, 0, 0, 0, 1, 1, 1, 1}
	if err := ds.AddContinuousFeature(values); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddClassificationLabel(labels, 2); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddDefaultSampleWeights(); err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestSchedulerProducesEquivalentTreesAcrossWorkerCounts(t *testing.T) {
	ds := separableDataset(t)

	cfg := tree.Config{CostKind: cost.Gini, NumFeaturesForSplit: 1, MinLeafNode: 1, MinSplitNode: 2, MaxDepth: -1}

	b1 := tree.NewBuilder(ds, cfg, nil)
	b1.SeedRoot(dataset.MakeRoot(ds))
	s1 := NewScheduler(1)
	s1.AddTree(b1, 42)
	if err := s1.Run(); err != nil {
		t.Fatalf("Run(1 worker): %v", err)
	}
	tree1 := s1.Results()[0]

	b4 := tree.NewBuilder(ds, cfg, nil)
	b4.SeedRoot(dataset.MakeRoot(ds))
	s4 := NewScheduler(4)
	s4.AddTree(b4, 42)
	if err := s4.Run(); err != nil {
		t.Fatalf("Run(4 workers): %v", err)
	}
	tree4 := s4.Results()[0]

	if tree1.NumCell() != tree4.NumCell() || tree1.NumLeaf() != tree4.NumLeaf() {
		t.Fatalf("tree shape diverged across worker counts: %d/%d vs %d/%d", tree1.NumCell(), tree1.NumLeaf(), tree4.NumCell(), tree4.NumLeaf())
	}
	for id := uint32(0); id < 8; id++ {
		leaf1, err := tree1.Predict(ds, id)
		if err != nil {
			t.Fatal(err)
		}
		leaf4, err := tree4.Predict(ds, id)
		if err != nil {
			t.Fatal(err)
		}
		if tree1.PredictedClass(leaf1) != tree4.PredictedClass(leaf4) {
			t.Errorf("sample %d: prediction diverged across worker counts", id)
		}
	}
}

func TestSchedulerGrowsMultipleTreesConcurrently(t *testing.T) {
	ds := separableDataset(t)
	cfg := tree.Config{CostKind: cost.Gini, NumFeaturesForSplit: 1, MinLeafNode: 1, MinSplitNode: 2, MaxDepth: -1}

	s := NewScheduler(4)
	var builders []*tree.Builder
	for i := 0; i < 3; i++ {
		b := tree.NewBuilder(ds, cfg, nil)
		b.SeedRoot(dataset.MakeRoot(ds))
		s.AddTree(b, int64(100+i))
		builders = append(builders, b)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := s.Results()
	if len(results) != len(builders) {
		t.Fatalf("expected %d results, got %d", len(builders), len(results))
	}
	for i, tr := range results {
		if tr.NumLeaf() == 0 {
			t.Errorf("tree %d: expected at least one leaf", i)
		}
	}
}
