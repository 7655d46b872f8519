package trainer

import (
	"math"

	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/storedtree"
)

// OOBResult is ForestTrainer's out-of-bag accounting, reduced across every
// tree (spec.md §11 Supplemented Features). Exactly one of the
// classification/regression field groups is populated, per IsClassification.
type OOBResult struct {
	IsClassification bool

	// Classification: confusion matrix (rows=actual, cols=predicted) and
	// overall accuracy over every sample that was out-of-bag at least once.
	ConfusionMatrix [][]int
	Accuracy        float64

	// Regression: per-sample id, the mean of every out-of-bag tree's
	// prediction for it; math.NaN() for a sample never out-of-bag.
	Predicted []float64
}

// oobAccumulator is this port's analogue of wlattner-rf's oobCtr
// (forest/forest.go), adapted from a single boolean in-bag vector to the
// with-replacement bootstrap weight vector spec.md §6 bags with, and
// extended to regression — the teacher's oobCtr only ever backs a
// classifier.
type oobAccumulator struct {
	isClassification bool
	classVotes       [][]int   // per sample id, per class
	sumPred          []float64 // per sample id
	oobVotes         []int     // per sample id, number of trees that scored it OOB
}

func newOOBAccumulator(ds *dataset.Dataset) *oobAccumulator {
	n := ds.Size()
	o := &oobAccumulator{isClassification: ds.IsClassification(), oobVotes: make([]int, n)}
	if ds.IsClassification() {
		o.classVotes = make([][]int, n)
		for i := range o.classVotes {
			o.classVotes[i] = make([]int, ds.NumClasses())
		}
	} else {
		o.sumPred = make([]float64, n)
	}
	return o
}

// update accumulates one tree's out-of-bag predictions: every sample id in
// rootAll whose bootstrap weight was 0 for this tree (never drawn into its
// bootstrap training set) gets a vote or prediction from that tree.
func (o *oobAccumulator) update(ds *dataset.Dataset, t *storedtree.Tree, rootAll *dataset.Subset, bootstrapWeights []uint32) {
	for _, id := range rootAll.SampleIDs {
		if bootstrapWeights[id] > 0 {
			continue
		}
		leafID, err := t.Predict(ds, id)
		if err != nil {
			continue
		}
		o.oobVotes[id]++
		if o.isClassification {
			o.classVotes[id][t.PredictedClass(leafID)]++
		} else {
			o.sumPred[id] += t.LeafMean[leafID]
		}
	}
}

// compute reduces every tree's OOB votes into a confusion matrix/accuracy
// (classification) or per-sample averaged prediction (regression), over
// rootAll's population only — samples the base sample_weights excluded
// entirely were never eligible for bagging or OOB scoring.
func (o *oobAccumulator) compute(ds *dataset.Dataset, rootAll *dataset.Subset) OOBResult {
	res := OOBResult{IsClassification: o.isClassification}
	if !o.isClassification {
		res.Predicted = make([]float64, ds.Size())
		for i := range res.Predicted {
			res.Predicted[i] = math.NaN()
		}
		for _, id := range rootAll.SampleIDs {
			if o.oobVotes[id] == 0 {
				continue
			}
			res.Predicted[id] = o.sumPred[id] / float64(o.oobVotes[id])
		}
		return res
	}

	res.ConfusionMatrix = make([][]int, ds.NumClasses())
	for i := range res.ConfusionMatrix {
		res.ConfusionMatrix[i] = make([]int, ds.NumClasses())
	}
	var correct, scored int
	for _, id := range rootAll.SampleIDs {
		if o.oobVotes[id] == 0 {
			continue
		}
		actual := ds.ClassLabel(id)
		predicted := argmaxInt(o.classVotes[id])
		res.ConfusionMatrix[actual][predicted]++
		scored++
		if int(actual) == predicted {
			correct++
		}
	}
	if scored > 0 {
		res.Accuracy = float64(correct) / float64(scored)
	}
	return res
}

func argmaxInt(votes []int) int {
	best, bestV := 0, -1
	for c, v := range votes {
		if v > bestV {
			best, bestV = c, v
		}
	}
	return best
}
