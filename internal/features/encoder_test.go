package features

import (
	"testing"

	"github.com/pricepally/demandcast/internal/api"
)

func rowFor(key api.SeriesKey, category string) *Row {
	return &Row{
		ProductName: key.ProductName,
		Category:    category,
		UOM:         key.UOM,
		SalesType:   key.SalesType,
	}
}

func TestEncoderVocabulary(t *testing.T) {
	rows := []*Row{
		rowFor(api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}, "Vegetables"),
		rowFor(api.SeriesKey{ProductName: "Onions", UOM: "kg", SalesType: "retail"}, "Vegetables"),
		rowFor(api.SeriesKey{ProductName: "Tomatoes", UOM: "crate", SalesType: "wholesale"}, "Vegetables"),
	}
	e := FitEncoder(rows)

	p, c, u, s := e.VocabSizes()
	if p != 2 || c != 1 || u != 2 || s != 2 {
		t.Errorf("VocabSizes() = (%d, %d, %d, %d), want (2, 1, 2, 2)", p, c, u, s)
	}

	// first-seen order: Tomatoes=0, Onions=1
	v0 := e.Encode(rows[0])
	v1 := e.Encode(rows[1])
	if v0[NumericWidth] != 0 || v1[NumericWidth] != 1 {
		t.Errorf("product codes = (%f, %f), want (0, 1)", v0[NumericWidth], v1[NumericWidth])
	}
}

func TestEncoderUnknownValue(t *testing.T) {
	e := FitEncoder([]*Row{
		rowFor(api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}, "Vegetables"),
	})

	v := e.Encode(rowFor(api.SeriesKey{ProductName: "Plantain", UOM: "bunch", SalesType: "retail"}, "Fruit"))
	if v[NumericWidth] != -1 {
		t.Errorf("unknown product code = %f, want -1", v[NumericWidth])
	}
	if v[NumericWidth+1] != -1 {
		t.Errorf("unknown category code = %f, want -1", v[NumericWidth+1])
	}
	if v[NumericWidth+2] != -1 {
		t.Errorf("unknown UOM code = %f, want -1", v[NumericWidth+2])
	}
	if v[NumericWidth+3] != 0 {
		t.Errorf("known sales type code = %f, want 0", v[NumericWidth+3])
	}
}

func TestEncodeWidth(t *testing.T) {
	e := FitEncoder(nil)
	r := rowFor(api.SeriesKey{ProductName: "x", UOM: "y", SalesType: "z"}, "c")
	r.Lags = [3]float64{1, 2, 3}
	r.RollMean = [2]float64{4, 5}
	r.RollStd = 6
	r.MonthSin = 7
	r.MonthCos = 8

	v := e.Encode(r)
	if len(v) != VectorWidth {
		t.Fatalf("Encode width = %d, want %d", len(v), VectorWidth)
	}
	want := []float64{1, 2, 3, 4, 5, 6, 7, 8, -1, -1, -1, -1}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("v[%d] = %f, want %f", i, v[i], want[i])
		}
	}
}
