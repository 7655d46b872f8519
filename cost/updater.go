package cost

// ClassUpdater tracks a classification split candidate's running cost as
// samples move one class-weighted unit from right to left.
type ClassUpdater interface {
	// MoveOneUnit moves a sample of the given class and weight from right
	// to left.
	MoveOneUnit(class int, weight float64)
	// Cost returns the current combined left/right cost.
	Cost() float64
	LeftWeight() float64
	RightWeight() float64
}

// RegUpdater is ClassUpdater's regression counterpart.
type RegUpdater interface {
	MoveOneUnit(y, weight float64)
	Cost() float64
	LeftCount() float64
	RightCount() float64
}

// GiniUpdater implements the incremental Gini update of spec.md §4.3: two
// running linear quantities UL, UR such that cost = UL/WL + UR/WR. Moving
// weight w of class c from right to left updates them as
// UL += 2w(WL-hL[c]), UR -= 2w(WR-hR[c]) using pre-move weights, before
// WL/WR/hL/hR themselves are adjusted.
type GiniUpdater struct {
	hL, hR []float64
	wl, wr float64
	ul, ur float64
}

// NewGiniUpdater starts with every sample on the right (histogram as-is).
func NewGiniUpdater(histogram []float64) *GiniUpdater {
	hL := make([]float64, len(histogram))
	hR := make([]float64, len(histogram))
	copy(hR, histogram)
	wr := sum(hR)
	return &GiniUpdater{
		hL: hL, hR: hR,
		wl: 0, wr: wr,
		ul: 0, ur: GiniNumerator(histogram),
	}
}

// MoveOneUnit moves weight w of the given class from right to left
// (negative w reverses the move); w need not be a single sample's weight —
// callers that move a whole bin at once pass the bin's aggregate weight.
func (g *GiniUpdater) MoveOneUnit(class int, w float64) {
	g.ul += 2 * w * (g.wl - g.hL[class])
	g.ur -= 2 * w * (g.wr - g.hR[class])
	g.wl += w
	g.hL[class] += w
	g.wr -= w
	g.hR[class] -= w
}

func (g *GiniUpdater) Cost() float64 {
	var left, right float64
	if g.wl > 0 {
		left = g.ul / g.wl
	}
	if g.wr > 0 {
		right = g.ur / g.wr
	}
	return left + right
}

func (g *GiniUpdater) LeftWeight() float64  { return g.wl }
func (g *GiniUpdater) RightWeight() float64 { return g.wr }

// EntropyUpdater keeps the left/right class histograms up to date as
// weight moves from right to left; Cost recomputes both sides' entropy
// from those histograms through the NLogN table on every call.
type EntropyUpdater struct {
	table  *NLogNTable
	hL, hR []float64
	wl, wr float64
}

func NewEntropyUpdater(histogram []float64, table *NLogNTable) *EntropyUpdater {
	hL := make([]float64, len(histogram))
	hR := make([]float64, len(histogram))
	copy(hR, histogram)
	return &EntropyUpdater{table: table, hL: hL, hR: hR, wl: 0, wr: sum(hR)}
}

func (e *EntropyUpdater) MoveOneUnit(class int, w float64) {
	e.hL[class] += w
	e.hR[class] -= w
	e.wl += w
	e.wr -= w
}

func (e *EntropyUpdater) Cost() float64 {
	return e.table.EntropyCost(e.hL) + e.table.EntropyCost(e.hR)
}

func (e *EntropyUpdater) LeftWeight() float64  { return e.wl }
func (e *EntropyUpdater) RightWeight() float64 { return e.wr }

// VarianceUpdater tracks running sum/sum-of-squares for regression splits,
// grounded in the teacher's varValuer (wlattner-rf/tree/valuer.go).
type VarianceUpdater struct {
	nl, nr     float64
	sl, ssl    float64
	sr, ssr    float64
}

func NewVarianceUpdater(numSamples, sum, squareSum float64) *VarianceUpdater {
	return &VarianceUpdater{nl: 0, nr: numSamples, sl: 0, ssl: 0, sr: sum, ssr: squareSum}
}

func (v *VarianceUpdater) MoveOneUnit(y, w float64) {
	v.nl += w
	v.sl += w * y
	v.ssl += w * y * y
	v.nr -= w
	v.sr -= w * y
	v.ssr -= w * y * y
}

// MoveBulk moves an aggregate (count, sum, square_sum) from right to left
// in one step — used by the bucket-at-a-time scanners (ordinal, one-vs-all,
// many-vs-many) where several samples move together. A negative count
// reverses the move (right-to-left becomes left-to-right).
func (v *VarianceUpdater) MoveBulk(count, sum, squareSum float64) {
	v.nl += count
	v.sl += sum
	v.ssl += squareSum
	v.nr -= count
	v.sr -= sum
	v.ssr -= squareSum
}

func (v *VarianceUpdater) Cost() float64 {
	return VarianceCost(v.nl, v.sl, v.ssl) + VarianceCost(v.nr, v.sr, v.ssr)
}

func (v *VarianceUpdater) LeftCount() float64  { return v.nl }
func (v *VarianceUpdater) RightCount() float64 { return v.nr }
