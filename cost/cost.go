// Package cost implements the Gini, Entropy and Variance cost functions
// of spec.md §4.3, each with an incremental left/right updater used by the
// split package's per-feature scanners.
package cost

// Kind enumerates the cost function selector values of spec.md §6,
// preserved at these exact values across the API.
type Kind int

const (
	Entropy Kind = 1
	Gini    Kind = 2
	Variance Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Gini:
		return "gini"
	case Entropy:
		return "entropy"
	case Variance:
		return "variance"
	default:
		return "unknown"
	}
}

// FloatError is the shared gain/weight-rounding epsilon of spec.md §6.
const FloatError = 1e-10

// GiniNumerator returns Σ_c h_c·(W−h_c), the undivided numerator of the
// Gini formula; GiniCost divides it by W.
func GiniNumerator(histogram []float64) float64 {
	w := sum(histogram)
	var num float64
	for _, h := range histogram {
		num += h * (w - h)
	}
	return num
}

// GiniCost computes Σ h·(W−h)/W with W = Σh (spec.md §4.3).
func GiniCost(histogram []float64) float64 {
	w := sum(histogram)
	if w <= 0 {
		return 0
	}
	return GiniNumerator(histogram) / w
}

// VarianceCost computes the summed squared residual square_sum −
// sum²/num_samples, not divided by n: gain non-negativity (spec.md §4.4.8)
// only holds for this additive form, since SSR_parent >= SSR_left +
// SSR_right but the per-sample mean-of-variances does not sum that way.
func VarianceCost(numSamples, sum, squareSum float64) float64 {
	if numSamples <= 0 {
		return 0
	}
	return squareSum - sum*sum/numSamples
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
