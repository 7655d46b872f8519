package cost

import (
	"math"
	"testing"

	"github.com/copse-ml/copse/errs"
)

func TestNLogNTableUnitWeights(t *testing.T) {
	tbl, err := NewNLogNTable(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Multiplier() != 1 {
		t.Errorf("expected multiplier 1 for nil class weights, got %d", tbl.Multiplier())
	}

	// Balanced two-class histogram: N·log N − Σ h·log h = 10·log2(10) −
	// 2·5·log2(5) = 10 (1 bit for each of the 10 samples).
	got := tbl.EntropyCost([]float64{5, 5})
	if math.Abs(got-10.0) > 1e-9 {
		t.Errorf("expected entropy 10 for a balanced binary histogram of 10 samples, got %v", got)
	}

	if tbl.EntropyCost([]float64{10, 0}) != 0 {
		t.Errorf("expected entropy 0 for a pure histogram")
	}
}

func TestNLogNTableFractionalWeights(t *testing.T) {
	// class weights 0.5, 0.25 need multiplier 4.
	tbl, err := NewNLogNTable([]float64{0.5, 0.25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Multiplier() != 4 {
		t.Errorf("expected multiplier 4, got %d", tbl.Multiplier())
	}
}

func TestNLogNTableUnsupportedWeights(t *testing.T) {
	// An irrational-ish ratio that can't be approximated by any
	// multiplier <= 100 within FloatError.
	_, err := NewNLogNTable([]float64{1, math.Sqrt2})
	if err == nil {
		t.Fatal("expected an error for class weights with no integer multiplier")
	}
	if !errs.Is(err, errs.Unsupported) {
		t.Errorf("expected errs.Unsupported, got %v", err)
	}
}

func TestNLogNGrowsOnDemand(t *testing.T) {
	tbl, _ := NewNLogNTable(nil)
	v := tbl.NLogN(1000)
	want := 1000.0 * math.Log2(1000)
	if math.Abs(v-want) > 1e-6 {
		t.Errorf("NLogN(1000) = %v, want %v", v, want)
	}
}
