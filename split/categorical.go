package split

import "github.com/copse-ml/copse/dataset"

// binAggregates holds, per bin, the pre-aggregated weighted class histogram
// (classification) or (count, sum, square_sum) (regression) — the shared
// groundwork for Ordinal, OneVsAll and every many-vs-many strategy
// (spec.md §4.4.2-§4.4.6), all of which move or compare whole bins rather
// than individual samples.
type binAggregates struct {
	numBins    uint32
	isClass    bool
	numClasses int

	classHist [][]float64 // [bin][class], classification only
	count     []float64   // [bin], regression only
	sum       []float64
	squareSum []float64
}

func gatherBinAggregates(s *dataset.Subset, featureIdx int) *binAggregates {
	ds := s.Dataset
	numBins := ds.NumBins(featureIdx)
	bins := s.Gather(featureIdx)

	a := &binAggregates{numBins: numBins, isClass: ds.IsClassification()}
	if a.isClass {
		a.numClasses = ds.NumClasses()
		a.classHist = make([][]float64, numBins)
		for i := range a.classHist {
			a.classHist[i] = make([]float64, a.numClasses)
		}
		for i, bin := range bins {
			class := int(s.Labels[i])
			a.classHist[bin][class] += float64(s.Weights[i]) * ds.ClassWeight(uint32(class))
		}
		return a
	}

	a.count = make([]float64, numBins)
	a.sum = make([]float64, numBins)
	a.squareSum = make([]float64, numBins)
	for i, bin := range bins {
		w := float64(s.Weights[i])
		y := s.Labels[i]
		a.count[bin] += w
		a.sum[bin] += w * y
		a.squareSum[bin] += w * y * y
	}
	return a
}

// weight returns a bin's total weighted mass (classification: Σ class
// histogram; regression: count).
func (a *binAggregates) weight(bin uint32) float64 {
	if a.isClass {
		var w float64
		for _, h := range a.classHist[bin] {
			w += h
		}
		return w
	}
	return a.count[bin]
}
