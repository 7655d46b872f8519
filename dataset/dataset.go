// Package dataset implements the read-only columnar training set and the
// per-node Subset it is restricted to, per spec.md §3-§4.1.
package dataset

import (
	"github.com/copse-ml/copse/errs"
)

// LabelKind distinguishes a classification target (integral class ids
// 0..K-1) from a regression target (floating point).
type LabelKind int

const (
	ClassificationLabel LabelKind = iota
	RegressionLabel
)

// Dataset is the immutable, shared-across-workers training set described
// in spec.md §3. It is built once via the Add* methods (the "Training API"
// boundary of spec.md §6) and never mutated afterwards.
type Dataset struct {
	columns []Column

	labelKind   LabelKind
	classLabels []uint32  // populated when labelKind == ClassificationLabel
	regLabels   []float64 // populated when labelKind == RegressionLabel

	sampleWeights []uint32
	classWeights  []float64 // nil => implicit weight 1.0 per class

	numClasses int

	size        int // len(columns[i]) for any i — the input length
	numSamples  int // Σ sample_weights
	wnumSamples float64
}

// New returns an empty Dataset. Callers populate it with
// AddContinuousFeature/AddDiscreteFeature, AddClassificationLabel or
// AddRegressionLabel, AddSampleWeights (or AddDefaultSampleWeights), and
// AddClassWeights, then Validate it before training.
func New() *Dataset {
	return &Dataset{labelKind: ClassificationLabel}
}

// AddContinuousFeature appends a continuous (float) feature column.
func (d *Dataset) AddContinuousFeature(values []float64) error {
	if len(values) == 0 {
		return errs.New(errs.InvalidInput, "continuous feature has no values")
	}
	if err := d.checkSize(len(values)); err != nil {
		return err
	}
	d.columns = append(d.columns, newContinuousColumn(values))
	return nil
}

// AddDiscreteFeature appends an Ordinal, OneVsAll or ManyVsMany feature
// column. bins must take values in [0, numBins).
func (d *Dataset) AddDiscreteFeature(t FeatureType, bins []uint32, numBins uint32) error {
	if t == Continuous {
		return errs.New(errs.InvalidInput, "AddDiscreteFeature called with Continuous type")
	}
	if len(bins) == 0 {
		return errs.New(errs.InvalidInput, "discrete feature has no values")
	}
	if numBins == 0 {
		return errs.New(errs.InvalidInput, "discrete feature %v declares zero bins", t)
	}
	if err := d.checkSize(len(bins)); err != nil {
		return err
	}
	for _, b := range bins {
		if b >= numBins {
			return errs.New(errs.InvalidInput, "discrete feature value %d out of range [0,%d)", b, numBins)
		}
	}
	d.columns = append(d.columns, newDiscreteColumn(t, bins, numBins))
	return nil
}

// AddClassificationLabel sets the training labels for a classification
// problem: integral class ids in [0, numClasses).
func (d *Dataset) AddClassificationLabel(labels []uint32, numClasses int) error {
	if err := d.checkSize(len(labels)); err != nil {
		return err
	}
	if numClasses <= 0 {
		return errs.New(errs.InvalidInput, "numClasses must be positive, got %d", numClasses)
	}
	for _, l := range labels {
		if int(l) >= numClasses {
			return errs.New(errs.InvalidInput, "label %d out of range [0,%d)", l, numClasses)
		}
	}
	d.labelKind = ClassificationLabel
	d.classLabels = labels
	d.numClasses = numClasses
	return d.recomputeWeightedCounts()
}

// AddRegressionLabel sets the training labels for a regression problem.
func (d *Dataset) AddRegressionLabel(labels []float64) error {
	if err := d.checkSize(len(labels)); err != nil {
		return err
	}
	d.labelKind = RegressionLabel
	d.regLabels = labels
	return nil
}

// AddSampleWeights sets non-negative integer sample weights; a weight of
// 0 means "not in the training sample" (used by bagging, spec.md §3).
func (d *Dataset) AddSampleWeights(weights []uint32) error {
	if err := d.checkSize(len(weights)); err != nil {
		return err
	}
	d.sampleWeights = weights
	return d.recomputeWeightedCounts()
}

// AddDefaultSampleWeights sets every sample weight to 1.
func (d *Dataset) AddDefaultSampleWeights() error {
	if d.size == 0 {
		return errs.New(errs.InvalidInput, "dataset has no features to size default sample weights from")
	}
	w := make([]uint32, d.size)
	for i := range w {
		w[i] = 1
	}
	return d.AddSampleWeights(w)
}

// AddClassWeights sets a per-class weight vector. Classification only.
func (d *Dataset) AddClassWeights(weights []float64) error {
	if d.labelKind != ClassificationLabel {
		return errs.New(errs.InvalidInput, "class weights only apply to classification labels")
	}
	if len(weights) != d.numClasses {
		return errs.New(errs.InvalidInput, "class_weights length %d != num_classes %d", len(weights), d.numClasses)
	}
	d.classWeights = weights
	return d.recomputeWeightedCounts()
}

func (d *Dataset) checkSize(n int) error {
	if d.size == 0 {
		d.size = n
		return nil
	}
	if n != d.size {
		return errs.New(errs.InvalidInput, "column length %d does not match dataset size %d", n, d.size)
	}
	return nil
}

func (d *Dataset) recomputeWeightedCounts() error {
	if d.sampleWeights == nil {
		return nil
	}
	d.numSamples = 0
	for _, w := range d.sampleWeights {
		d.numSamples += int(w)
	}
	if d.labelKind != ClassificationLabel || d.classLabels == nil {
		return nil
	}
	d.wnumSamples = 0
	for i, w := range d.sampleWeights {
		d.wnumSamples += float64(w) * d.ClassWeight(d.classLabels[i])
	}
	return nil
}

// Validate checks the invariants spec.md §7 calls InvalidInput: at least
// one feature, a label, sample weights sized to match, and (for
// classification) a class_weights vector of the right length if present.
func (d *Dataset) Validate() error {
	if len(d.columns) == 0 {
		return errs.New(errs.InvalidInput, "dataset has no features")
	}
	if d.labelKind == ClassificationLabel && d.classLabels == nil {
		return errs.New(errs.InvalidInput, "dataset has no classification labels")
	}
	if d.labelKind == RegressionLabel && d.regLabels == nil {
		return errs.New(errs.InvalidInput, "dataset has no regression labels")
	}
	if d.sampleWeights == nil {
		return errs.New(errs.InvalidInput, "dataset has no sample weights")
	}
	return nil
}

// IsClassification reports whether this Dataset carries a classification
// (vs regression) label.
func (d *Dataset) IsClassification() bool { return d.labelKind == ClassificationLabel }

// Size returns the input length (before weighting).
func (d *Dataset) Size() int { return d.size }

// NumFeatures returns the number of feature columns.
func (d *Dataset) NumFeatures() int { return len(d.columns) }

// NumSamples returns Σ sample_weights.
func (d *Dataset) NumSamples() int { return d.numSamples }

// WNumSamples returns Σ sample_weights[i]·class_weights[labels[i]]
// (classification only; 0 for regression).
func (d *Dataset) WNumSamples() float64 { return d.wnumSamples }

// NumClasses returns the number of classes (classification only).
func (d *Dataset) NumClasses() int { return d.numClasses }

// FeatureType returns the type tag of feature i.
func (d *Dataset) FeatureType(i int) FeatureType { return d.columns[i].Type }

// NumBins returns the cardinality of feature i (0 for continuous).
func (d *Dataset) NumBins(i int) uint32 { return d.columns[i].NumBins }

// MaxNumBins returns the largest NumBins across all discrete features.
func (d *Dataset) MaxNumBins() uint32 {
	var max uint32
	for _, c := range d.columns {
		if c.NumBins > max {
			max = c.NumBins
		}
	}
	return max
}

// ClassWeight returns the weight for class c (1.0 if no class_weights
// were set).
func (d *Dataset) ClassWeight(c uint32) float64 {
	if d.classWeights == nil {
		return 1.0
	}
	return d.classWeights[c]
}

// ClassWeights returns the raw class weight vector, or nil if unset.
func (d *Dataset) ClassWeights() []float64 { return d.classWeights }

// SampleWeight returns the weight of sample i.
func (d *Dataset) SampleWeight(i uint32) uint32 { return d.sampleWeights[i] }

// ClassLabel returns the class id of sample i (classification only).
func (d *Dataset) ClassLabel(i uint32) uint32 { return d.classLabels[i] }

// RegLabel returns the regression target of sample i (regression only).
func (d *Dataset) RegLabel(i uint32) float64 { return d.regLabels[i] }

// ContinuousValue returns feature[sampleID] for a continuous feature.
func (d *Dataset) ContinuousValue(featureIdx int, sampleID uint32) float64 {
	return d.columns[featureIdx].Floats[sampleID]
}

// DiscreteValue returns feature[sampleID] (a bin id) for a discrete
// feature.
func (d *Dataset) DiscreteValue(featureIdx int, sampleID uint32) uint32 {
	return d.columns[featureIdx].Bins[sampleID]
}

// column exposes the raw Column for package-internal use (Subset.Gather,
// Subset.Sort).
func (d *Dataset) column(i int) *Column { return &d.columns[i] }
