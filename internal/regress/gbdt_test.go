package regress

import (
	"math"
	"testing"
)

func TestFitConstantTarget(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {3}}
	y := []float64{5, 5, 5, 5}

	m, err := Fit(x, y, DefaultParams())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	got, err := m.Predict([]float64{1.5})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("Predict on constant target = %f, want 5", got)
	}
}

func TestFitSeparableSplit(t *testing.T) {
	x := [][]float64{{0}, {0}, {0}, {1}, {1}, {1}}
	y := []float64{0, 0, 0, 10, 10, 10}

	m, err := Fit(x, y, DefaultParams())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	low, _ := m.Predict([]float64{0})
	high, _ := m.Predict([]float64{1})
	if math.Abs(low-0) > 0.1 {
		t.Errorf("Predict(0) = %f, want ~0", low)
	}
	if math.Abs(high-10) > 0.1 {
		t.Errorf("Predict(1) = %f, want ~10", high)
	}
}

func TestFitLinearTrend(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		x = append(x, []float64{float64(i)})
		y = append(y, 2*float64(i)+1)
	}

	m, err := Fit(x, y, DefaultParams())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// interior points should be recovered closely; trees cannot extrapolate
	for _, i := range []int{5, 20, 34} {
		got, _ := m.Predict([]float64{float64(i)})
		want := 2*float64(i) + 1
		if math.Abs(got-want) > 1.0 {
			t.Errorf("Predict(%d) = %f, want ~%f", i, got, want)
		}
	}
}

func TestFitDeterministic(t *testing.T) {
	x := [][]float64{{1, 3}, {2, 1}, {3, 4}, {4, 1}, {5, 5}, {6, 9}, {7, 2}, {8, 6}}
	y := []float64{2, 4, 1, 8, 5, 7, 3, 9}

	m1, err := Fit(x, y, DefaultParams())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	m2, err := Fit(x, y, DefaultParams())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for _, probe := range x {
		a, _ := m1.Predict(probe)
		b, _ := m2.Predict(probe)
		if a != b {
			t.Fatalf("identical fits disagree at %v: %f vs %f", probe, a, b)
		}
	}
}

func TestFitValidation(t *testing.T) {
	if _, err := Fit(nil, nil, DefaultParams()); err == nil {
		t.Error("expected error for empty matrix")
	}
	if _, err := Fit([][]float64{{1}}, []float64{1, 2}, DefaultParams()); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := Fit([][]float64{{1}, {1, 2}}, []float64{1, 2}, DefaultParams()); err == nil {
		t.Error("expected error for ragged rows")
	}
	if _, err := Fit([][]float64{{1}}, []float64{1}, Params{}); err == nil {
		t.Error("expected error for zero params")
	}
}

func TestPredictWidthCheck(t *testing.T) {
	m, err := Fit([][]float64{{1, 2}, {3, 4}}, []float64{1, 2}, DefaultParams())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := m.Predict([]float64{1}); err == nil {
		t.Error("expected error for wrong vector width")
	}
}

func TestNumTrees(t *testing.T) {
	p := DefaultParams()
	p.NumTrees = 17
	m, err := Fit([][]float64{{0}, {1}}, []float64{1, 2}, p)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if m.NumTrees() != 17 {
		t.Errorf("NumTrees = %d, want 17", m.NumTrees())
	}
}
