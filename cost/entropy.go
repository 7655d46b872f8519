package cost

import (
	"math"

	"github.com/copse-ml/copse/errs"
)

// NLogNTable precomputes x·log₂x at integer multiples of 1/multiplier, as
// spec.md §4.3 describes, and extends itself on demand up to the largest
// integer-weighted sample count observed.
//
// multiplier is the smallest integer in [1,100] such that every
// class_weight·multiplier rounds to an integer within FloatError. Class
// weights that admit no such multiplier make Entropy Unsupported
// (surfaced before scheduling, spec.md §7).
type NLogNTable struct {
	multiplier int
	table      []float64 // table[x] = x·log2(x), x integer >= 0
}

// NewNLogNTable computes the multiplier for classWeights (nil/empty means
// uniform weight 1, multiplier 1) and returns a table ready to grow.
func NewNLogNTable(classWeights []float64) (*NLogNTable, error) {
	mult, err := computeMultiplier(classWeights)
	if err != nil {
		return nil, err
	}
	t := &NLogNTable{multiplier: mult, table: []float64{0, 0}}
	return t, nil
}

func computeMultiplier(classWeights []float64) (int, error) {
	if len(classWeights) == 0 {
		return 1, nil
	}
	for m := 1; m <= 100; m++ {
		ok := true
		for _, cw := range classWeights {
			scaled := cw * float64(m)
			if math.Abs(scaled-math.Round(scaled)) > FloatError {
				ok = false
				break
			}
		}
		if ok {
			return m, nil
		}
	}
	return 0, errs.New(errs.Unsupported, "entropy: no integer multiplier <= 100 approximates class weights within %v", FloatError)
}

// Multiplier returns the table's integer multiplier.
func (t *NLogNTable) Multiplier() int { return t.multiplier }

// grow extends the table up to and including index x.
func (t *NLogNTable) grow(x int) {
	for len(t.table) <= x {
		n := float64(len(t.table))
		t.table = append(t.table, n*math.Log2(n))
	}
}

// NLogN returns x·log₂x for an integer x >= 0, growing the table up to x
// when needed; a negative x is a fatal programming error.
func (t *NLogNTable) NLogN(x int) float64 {
	if x < 0 {
		errs.Internal("NLogN called with negative x=%d", x)
	}
	t.grow(x)
	return t.table[x]
}

// ScaledNLogN returns v·log₂v for a real v >= 0 by rounding v·multiplier
// to the nearest integer scaled index k and rescaling the table lookup:
// v·log₂v ≈ (T(k) − k·log₂(multiplier)) / multiplier, where T(k)=k·log₂k.
func (t *NLogNTable) ScaledNLogN(v float64) float64 {
	if v <= 0 {
		return 0
	}
	k := int(math.Round(v * float64(t.multiplier)))
	if k <= 0 {
		return 0
	}
	tk := t.NLogN(k)
	if t.multiplier == 1 {
		return tk
	}
	return (tk - float64(k)*math.Log2(float64(t.multiplier))) / float64(t.multiplier)
}

// EntropyCost computes N·log N − Σ h·log h (in bits) for a histogram,
// using the table for every NLogN evaluation.
func (t *NLogNTable) EntropyCost(histogram []float64) float64 {
	n := sum(histogram)
	if n <= 0 {
		return 0
	}
	e := t.ScaledNLogN(n)
	for _, h := range histogram {
		e -= t.ScaledNLogN(h)
	}
	return e
}
