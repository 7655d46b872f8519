package tree

import (
	"math/rand"
	"testing"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
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
	if err := ds.Validate(); err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestBuildProducesAPerfectlySeparatingTree(t *testing.T) {
	ds := separableDataset(t)
	cfg := Config{CostKind: cost.Gini, NumFeaturesForSplit: 1, MinLeafNode: 1, MinSplitNode: 2, MaxDepth: -1}
	b := NewBuilder(ds, cfg, nil)
	root := dataset.MakeRoot(ds)

	got, err := b.Build(root, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.NumCell() != 1 {
		t.Fatalf("expected exactly one split cell, got %d", got.NumCell())
	}
	if got.NumLeaf() != 2 {
		t.Fatalf("expected exactly two leaves, got %d", got.NumLeaf())
	}

	for id := uint32(0); id < 8; id++ {
		leafID, err := got.Predict(ds, id)
		if err != nil {
			t.Fatalf("Predict(%d): %v", id, err)
		}
		want := 0
		if id >= 4 {
			want = 1
		}
		if got.PredictedClass(leafID) != want {
			t.Errorf("sample %d: expected class %d, got %d", id, want, got.PredictedClass(leafID))
		}
	}
}

func TestBuildMaxNumNodesForcesALeaf(t *testing.T) {
	ds := separableDataset(t)
	// A node budget of 1 leaves the root itself as the only node: no split
	// can be written once the budget is already spent.
	cfg := Config{CostKind: cost.Gini, NumFeaturesForSplit: 1, MinLeafNode: 1, MinSplitNode: 2, MaxDepth: -1, MaxNumNodes: 1}
	b := NewBuilder(ds, cfg, nil)
	root := dataset.MakeRoot(ds)

	got, err := b.Build(root, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.NumCell() != 0 || got.NumLeaf() != 1 {
		t.Fatalf("expected a single-leaf tree once the node budget is exhausted, got %d cells / %d leaves", got.NumCell(), got.NumLeaf())
	}
}

func TestBuildWithForestLevelPresortingMatchesUnpresortedSplit(t *testing.T) {
	ds := separableDataset(t)
	order := dataset.MakeRoot(ds).Sort(0)
	root := dataset.MakeRoot(ds)
	global := make([]uint32, len(order))
	for i, li := range order {
		global[i] = root.SampleIDs[li]
	}

	cfgPlain := Config{CostKind: cost.Gini, NumFeaturesForSplit: 1, MinLeafNode: 1, MinSplitNode: 2, MaxDepth: -1}
	plain := NewBuilder(ds, cfgPlain, nil)
	wantTree, err := plain.Build(dataset.MakeRoot(ds), rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatal(err)
	}

	cfgPresorted := Config{CostKind: cost.Gini, NumFeaturesForSplit: 1, MinLeafNode: 1, MinSplitNode: 2, MaxDepth: -1, Presorted: map[int][]uint32{0: global}}
	presorted := NewBuilder(ds, cfgPresorted, nil)
	gotTree, err := presorted.Build(dataset.MakeRoot(ds), rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatal(err)
	}

	if gotTree.NumCell() != wantTree.NumCell() || gotTree.NumLeaf() != wantTree.NumLeaf() {
		t.Fatalf("presorted build diverged in shape: %d/%d vs %d/%d", gotTree.NumCell(), gotTree.NumLeaf(), wantTree.NumCell(), wantTree.NumLeaf())
	}
	for id := uint32(0); id < 8; id++ {
		wantLeaf, err := wantTree.Predict(ds, id)
		if err != nil {
			t.Fatal(err)
		}
		gotLeaf, err := gotTree.Predict(ds, id)
		if err != nil {
			t.Fatal(err)
		}
		if wantTree.PredictedClass(wantLeaf) != gotTree.PredictedClass(gotLeaf) {
			t.Errorf("sample %d: presorted prediction diverges from plain build", id)
		}
	}
}
