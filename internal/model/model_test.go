package model

import (
	"errors"
	"math"
	"testing"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/calendar"
	"github.com/pricepally/demandcast/internal/features"
	"github.com/pricepally/demandcast/internal/regress"
)

func weeklySeries(key api.SeriesKey, start calendar.Week, qty []float64) *api.Series {
	obs := make([]api.Observation, len(qty))
	w := start
	for i, q := range qty {
		obs[i] = api.Observation{Week: w, Qty: q}
		w = w.Next()
	}
	return &api.Series{Key: key, Observations: obs}
}

func flatSeries(key api.SeriesKey, n int, qty float64) *api.Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = qty
	}
	return weeklySeries(key, calendar.Week{Year: 2026, Month: 1, WeekNo: 1}, values)
}

func TestTrainEmptyRouting(t *testing.T) {
	adapter, err := Train(nil, regress.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("Train with no routed series should be a no-op, got %v", err)
	}
	if adapter != nil {
		t.Error("Train with no routed series should return a nil adapter")
	}
}

func TestTrainNoUsableRows(t *testing.T) {
	// routed series too short to yield a single training row
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	_, err := Train([]*api.Series{flatSeries(key, 5, 10)}, regress.DefaultParams(), nil)

	var trainErr *TrainingError
	if !errors.As(err, &trainErr) {
		t.Fatalf("error = %v, want TrainingError", err)
	}
}

func TestTrainAndPredict(t *testing.T) {
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	s := flatSeries(key, 20, 10)

	adapter, err := Train([]*api.Series{s}, regress.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if adapter.TrainingRows() != 12 {
		t.Errorf("TrainingRows = %d, want 12", adapter.TrainingRows())
	}

	rows := features.TrainingRows(s)
	got, err := adapter.PredictRow(rows[0])
	if err != nil {
		t.Fatalf("PredictRow failed: %v", err)
	}
	// a flat series must predict its own log-space level
	want := features.Log1p(10)
	if math.Abs(got-want) > 0.01 {
		t.Errorf("PredictRow = %f, want ~%f", got, want)
	}
}

// fixedPredictor drives the recursion with a scripted response per step and
// captures the rows it was asked about.
type fixedPredictor struct {
	outputs []float64
	errAt   int // 1-based step to fail on; 0 means never
	rows    []*features.Row
}

func (f *fixedPredictor) PredictRow(row *features.Row) (float64, error) {
	call := len(f.rows) + 1
	f.rows = append(f.rows, row)
	if f.errAt > 0 && call == f.errAt {
		return 0, errors.New("scripted failure")
	}
	return f.outputs[call-1], nil
}

func TestDriverForecast(t *testing.T) {
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	s := flatSeries(key, 10, 10)

	pred := &fixedPredictor{outputs: []float64{features.Log1p(12), features.Log1p(14)}}
	records, err := NewDriver(pred, 2).Forecast(s)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	last := s.LastWeek()
	for i, r := range records {
		if r.Step != i+1 {
			t.Errorf("record %d Step = %d, want %d", i, r.Step, i+1)
		}
		last = last.Next()
		if r.Week != last {
			t.Errorf("record %d Week = %s, want %s", i, r.Week, last)
		}
		if r.Method != api.MethodModelRecursive {
			t.Errorf("record %d Method = %s", i, r.Method)
		}
	}
	if math.Abs(records[0].Qty-12) > 1e-9 || math.Abs(records[1].Qty-14) > 1e-9 {
		t.Errorf("quantities = [%f %f], want [12 14]", records[0].Qty, records[1].Qty)
	}
}

func TestDriverFeedsPredictionsBack(t *testing.T) {
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	s := flatSeries(key, 10, 10)

	pred := &fixedPredictor{outputs: []float64{features.Log1p(25), features.Log1p(25)}}
	if _, err := NewDriver(pred, 2).Forecast(s); err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	// step 2's lag-1 feature must be step 1's prediction, not an observation
	if got, want := pred.rows[1].Lags[0], features.Log1p(25); math.Abs(got-want) > 1e-9 {
		t.Errorf("step 2 lag-1 = %f, want %f", got, want)
	}
}

func TestDriverClampsNegative(t *testing.T) {
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	s := flatSeries(key, 10, 10)

	// a strongly negative log-space output inverts to a negative quantity
	pred := &fixedPredictor{outputs: []float64{-5, -5}}
	records, err := NewDriver(pred, 2).Forecast(s)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if records[0].Qty != 0 || records[1].Qty != 0 {
		t.Errorf("quantities = [%f %f], want clamped to 0", records[0].Qty, records[1].Qty)
	}

	// the clamped zero, not the raw negative, feeds the next step
	if got := pred.rows[1].Lags[0]; got != 0 {
		t.Errorf("step 2 lag-1 = %f, want 0 after clamping", got)
	}
}

func TestDriverFailsWholeSeries(t *testing.T) {
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	s := flatSeries(key, 10, 10)

	pred := &fixedPredictor{outputs: []float64{features.Log1p(12), 0}, errAt: 2}
	records, err := NewDriver(pred, 2).Forecast(s)
	if err == nil {
		t.Fatal("expected error from mid-recursion failure")
	}
	if records != nil {
		t.Errorf("got %d partial records, want none", len(records))
	}
}

func TestDriverShortHistory(t *testing.T) {
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	s := flatSeries(key, 5, 10)

	pred := &fixedPredictor{outputs: []float64{0, 0}}
	_, err := NewDriver(pred, 2).Forecast(s)
	if !errors.Is(err, features.ErrInsufficientHistory) {
		t.Errorf("error = %v, want ErrInsufficientHistory", err)
	}
}

func TestDriverDeterministic(t *testing.T) {
	key := api.SeriesKey{ProductName: "Tomatoes", UOM: "kg", SalesType: "retail"}
	qty := []float64{4, 9, 3, 12, 7, 15, 6, 11, 8, 14, 5, 13, 9, 10}
	s := weeklySeries(key, calendar.Week{Year: 2026, Month: 1, WeekNo: 1}, qty)

	adapter, err := Train([]*api.Series{s}, regress.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	first, err := NewDriver(adapter, 2).Forecast(s)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	second, err := NewDriver(adapter, 2).Forecast(s)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	for i := range first {
		if first[i].Qty != second[i].Qty {
			t.Fatalf("step %d differs between identical forecasts: %f vs %f",
				i+1, first[i].Qty, second[i].Qty)
		}
	}
}
