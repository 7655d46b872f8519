package storedtree

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/split"
)

func handBuiltClassificationTree(t *testing.T) *Tree {
	t.Helper()
	b := NewBuilder(true, 1)
	leftLeaf := b.NewLeaf([]float64{1, 0})
	rightLeaf := b.NewLeaf([]float64{0.25, 0.75})
	b.WriteRoot(split.Continuous, 0, 0.5)
	b.SetChildren(0, -leftLeaf, -rightLeaf)
	b.AddImportance(0, 0.4)
	return b.Finish(0.5)
}

func classificationDS(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New()
	if err := ds.AddContinuousFeature([]float64{0.1, 0.9}); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddClassificationLabel([]uint32{0, 1}, 2); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddDefaultSampleWeights(); err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestTreePredictRoutesLeftAndRight(t *testing.T) {
	tr := handBuiltClassificationTree(t)
	ds := classificationDS(t)

	leafID, err := tr.Predict(ds, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr.PredictedClass(leafID) != 0 {
		t.Errorf("sample 0 (0.1 < 0.5) should land in the left leaf (class 0), got class %d", tr.PredictedClass(leafID))
	}

	leafID, err = tr.Predict(ds, 1)
	if err != nil {
		t.Fatal(err)
	}
	if tr.PredictedClass(leafID) != 1 {
		t.Errorf("sample 1 (0.9 >= 0.5) should land in the right leaf (class 1), got class %d", tr.PredictedClass(leafID))
	}
}

func TestTreeFinishNormalizesImportanceAndLoss(t *testing.T) {
	tr := handBuiltClassificationTree(t)
	if math.Abs(tr.FeatureImportance[0]-1.0) > 1e-9 {
		t.Errorf("expected single-feature importance to normalize to 1.0, got %v", tr.FeatureImportance[0])
	}
	if tr.InitLoss != 0.5 {
		t.Errorf("expected InitLoss 0.5, got %v", tr.InitLoss)
	}
	wantFinal := 0.5 - 0.4
	if math.Abs(tr.FinalLoss-wantFinal) > 1e-9 {
		t.Errorf("expected FinalLoss %v, got %v", wantFinal, tr.FinalLoss)
	}
}

func TestTreeFinishZeroGainLeavesImportanceZero(t *testing.T) {
	b := NewBuilder(false, 2)
	leaf := b.NewRegressionLeaf(3.5)
	b.WriteRoot(split.Continuous, 0, 0.5)
	b.SetChildren(0, -leaf, -leaf)
	tr := b.Finish(0)
	for i, v := range tr.FeatureImportance {
		if v != 0 {
			t.Errorf("expected zero importance for feature %d with no recorded gain, got %v", i, v)
		}
	}
}

func TestTreeNumCellAndNumLeaf(t *testing.T) {
	tr := handBuiltClassificationTree(t)
	if tr.NumCell() != 1 {
		t.Errorf("expected 1 cell, got %d", tr.NumCell())
	}
	if tr.NumLeaf() != 2 {
		t.Errorf("expected 2 leaves, got %d", tr.NumLeaf())
	}
}

func TestTreeDumpRendersCellsAndLeaves(t *testing.T) {
	tr := handBuiltClassificationTree(t)
	var buf bytes.Buffer
	tr.Dump(&buf)
	out := buf.String()
	if !strings.Contains(out, "cell[0]") {
		t.Errorf("expected dump to mention the root cell, got:\n%s", out)
	}
	if !strings.Contains(out, "leaf[") {
		t.Errorf("expected dump to mention at least one leaf, got:\n%s", out)
	}
}

func TestTreePredictOnEmptyTreeErrors(t *testing.T) {
	tr := &Tree{}
	_, err := tr.Predict(classificationDS(t), 0)
	if err == nil {
		t.Fatal("expected an error predicting against an empty tree")
	}
}

func TestTreePredictLowCardinalityBitmask(t *testing.T) {
	b := NewBuilder(true, 1)
	leftLeaf := b.NewLeaf([]float64{1, 0})
	rightLeaf := b.NewLeaf([]float64{0, 1})
	idx := b.AddBitmask([]uint32{0b0101}) // bins 0 and 2 go left
	b.WriteRoot(split.LowCardinality, 0, idx)
	b.SetChildren(0, -leftLeaf, -rightLeaf)
	tr := b.Finish(0)

	ds := dataset.New()
	if err := ds.AddDiscreteFeature(dataset.ManyVsMany, []uint32{0, 1, 2, 3}, 4); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddClassificationLabel([]uint32{0, 0, 0, 0}, 2); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddDefaultSampleWeights(); err != nil {
		t.Fatal(err)
	}

	for id, wantLeft := range map[uint32]bool{0: true, 1: false, 2: true, 3: false} {
		leafID, err := tr.Predict(ds, id)
		if err != nil {
			t.Fatal(err)
		}
		gotLeft := tr.PredictedClass(leafID) == 0
		if gotLeft != wantLeft {
			t.Errorf("sample %d: expected left=%v, got leaf class %d", id, wantLeft, tr.PredictedClass(leafID))
		}
	}
}
