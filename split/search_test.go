package split

import (
	"math"
	"math/rand"
	"testing"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
)

func mustDataset(t *testing.T, build func(ds *dataset.Dataset) error) *dataset.Dataset {
	t.Helper()
	ds := dataset.New()
	if err := build(ds); err != nil {
		t.Fatalf("building dataset: %v", err)
	}
	if err := ds.AddDefaultSampleWeights(); err != nil {
		t.Fatalf("AddDefaultSampleWeights: %v", err)
	}
	return ds
}

func TestFindBestContinuousRecoversTheSeparatingThreshold(t *testing.T) {
	ds := mustDataset(t, func(ds *dataset.Dataset) error {
		if err := ds.AddContinuousFeature([]float64{0.1, 0.2, 0.3, 0.4, 0.7, 0.8, 0.9, 1.0}); err != nil {
			return err
		}
		return ds.AddClassificationLabel([]uint32{0, 0, 0, 0, 1, 1, 1, 1}, 2)
	})
	root := dataset.MakeRoot(ds)
	stats, err := dataset.ComputeStats(root, cost.Gini, nil)
	if err != nil {
		t.Fatal(err)
	}

	cand, ok := FindBest(root, 0, stats, cost.Gini, nil, 1, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatal("expected a feasible split")
	}
	if cand.Kind != Continuous {
		t.Fatalf("expected Continuous kind, got %v", cand.Kind)
	}
	wantThreshold := (0.4 + 0.7) / 2
	if math.Abs(cand.Threshold-wantThreshold) > 1e-9 {
		t.Errorf("expected threshold %v, got %v", wantThreshold, cand.Threshold)
	}
	if cand.Gain <= 0 {
		t.Errorf("expected positive gain, got %v", cand.Gain)
	}
}

func TestFindBestContinuousConstantFeatureIsInfeasible(t *testing.T) {
	ds := mustDataset(t, func(ds *dataset.Dataset) error {
		if err := ds.AddContinuousFeature([]float64{1.1, 1.1, 1.1, 1.1, 1.1}); err != nil {
			return err
		}
		return ds.AddClassificationLabel([]uint32{0, 0, 1, 1, 0}, 2)
	})
	root := dataset.MakeRoot(ds)
	stats, err := dataset.ComputeStats(root, cost.Gini, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, ok := FindBest(root, 0, stats, cost.Gini, nil, 1, rand.New(rand.NewSource(1)))
	if ok {
		t.Fatal("expected no feasible split on a constant feature")
	}
}

func TestFindBestOrdinalPicksCeilingBin(t *testing.T) {
	ds := mustDataset(t, func(ds *dataset.Dataset) error {
		// 3 ordinal bins; bins 0-1 are class 0, bin 2 is class 1.
		if err := ds.AddDiscreteFeature(dataset.Ordinal, []uint32{0, 0, 1, 1, 2, 2}, 3); err != nil {
			return err
		}
		return ds.AddClassificationLabel([]uint32{0, 0, 0, 0, 1, 1}, 2)
	})
	root := dataset.MakeRoot(ds)
	stats, err := dataset.ComputeStats(root, cost.Gini, nil)
	if err != nil {
		t.Fatal(err)
	}

	cand, ok := FindBest(root, 0, stats, cost.Gini, nil, 1, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatal("expected a feasible ordinal split")
	}
	if cand.Kind != Ordinal {
		t.Fatalf("expected Ordinal kind, got %v", cand.Kind)
	}
	if cand.Bin != 1 {
		t.Errorf("expected ceiling bin 1 (bins 0,1 go left), got %v", cand.Bin)
	}
}

func TestFindBestOneVsAllIsolatesTheDistinguishingBin(t *testing.T) {
	ds := mustDataset(t, func(ds *dataset.Dataset) error {
		if err := ds.AddDiscreteFeature(dataset.OneVsAll, []uint32{0, 0, 1, 1, 2, 2, 2}, 3); err != nil {
			return err
		}
		return ds.AddClassificationLabel([]uint32{0, 0, 0, 0, 1, 1, 1}, 2)
	})
	root := dataset.MakeRoot(ds)
	stats, err := dataset.ComputeStats(root, cost.Gini, nil)
	if err != nil {
		t.Fatal(err)
	}

	cand, ok := FindBest(root, 0, stats, cost.Gini, nil, 1, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatal("expected a feasible one-vs-all split")
	}
	if cand.Bin != 2 {
		t.Errorf("expected bin 2 to be isolated, got %v", cand.Bin)
	}
}

func TestFindBestRespectsMinLeafNode(t *testing.T) {
	ds := mustDataset(t, func(ds *dataset.Dataset) error {
		// Three tied values leave 3-1 as the only threshold the search can
		// place.
		if err := ds.AddContinuousFeature([]float64{0.1, 0.1, 0.1, 0.9}); err != nil {
			return err
		}
		return ds.AddClassificationLabel([]uint32{0, 0, 0, 1}, 2)
	})
	root := dataset.MakeRoot(ds)
	stats, err := dataset.ComputeStats(root, cost.Gini, nil)
	if err != nil {
		t.Fatal(err)
	}

	// min_leaf_node of 2 rules out the 3-1 split that a looser minimum allows.
	_, ok := FindBest(root, 0, stats, cost.Gini, nil, 2, rand.New(rand.NewSource(1)))
	if ok {
		t.Fatal("expected min_leaf_node=2 to reject the only available 3-1 split")
	}
}
