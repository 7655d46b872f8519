package trainer

import (
	"testing"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
)

func separableClassificationDataset(t *testing.T) *dataset.Dataset {
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
	return ds
}

func TestTreeTrainerTrainProducesASeparatingTree(t *testing.T) {
	ds := separableClassificationDataset(t)
	tt := NewTreeTrainer(cost.Gini, 1, 1, 2, -1, 7, 1)
	tt.LoadData(ds)
	if err := tt.LoadDefaultSampleWeights(); err != nil {
		t.Fatal(err)
	}

	got, err := tt.Train()
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got.NumLeaf() != 2 {
		t.Fatalf("expected a two-leaf tree, got %d leaves", got.NumLeaf())
	}
	for id := uint32(0); id < 8; id++ {
		leafID, err := got.Predict(ds, id)
		if err != nil {
			t.Fatal(err)
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

func TestTreeTrainerWithEntropyCost(t *testing.T) {
	ds := separableClassificationDataset(t)
	tt := NewTreeTrainer(cost.Entropy, 1, 1, 2, -1, 7, 2)
	tt.LoadData(ds)
	if err := tt.LoadDefaultSampleWeights(); err != nil {
		t.Fatal(err)
	}

	got, err := tt.Train()
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got.NumLeaf() == 0 {
		t.Fatal("expected at least one leaf")
	}
}

func TestTreeTrainerLogfHookFires(t *testing.T) {
	ds := separableClassificationDataset(t)
	var calls int
	tt := NewTreeTrainer(cost.Gini, 1, 1, 2, -1, 1, 1, TrainLogf(func(string, ...interface{}) { calls++ }))
	tt.LoadData(ds)
	if err := tt.LoadDefaultSampleWeights(); err != nil {
		t.Fatal(err)
	}
	if _, err := tt.Train(); err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Error("expected TrainLogf hook to fire at least once")
	}
}

func TestTreeTrainerRejectsAnInvalidDataset(t *testing.T) {
	ds := dataset.New()
	if err := ds.AddContinuousFeature([]float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	// No label attached: Validate should reject this before training starts.
	tt := NewTreeTrainer(cost.Gini, 1, 1, 2, -1, 1, 1)
	tt.LoadData(ds)
	if err := tt.LoadDefaultSampleWeights(); err != nil {
		t.Fatal(err)
	}
	if _, err := tt.Train(); err == nil {
		t.Fatal("expected Train to reject a dataset with no label")
	}
}
