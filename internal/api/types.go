package api

import (
	"fmt"
	"time"

	"github.com/pricepally/demandcast/internal/calendar"
)

// SeriesKey identifies one independent demand series.
type SeriesKey struct {
	ProductName string `json:"product_name"`
	UOM         string `json:"product_uom"`
	SalesType   string `json:"sales_type"`
}

// String renders the key for logs and store keys.
func (k SeriesKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.ProductName, k.UOM, k.SalesType)
}

// Observation is one weekly demand quantity.
type Observation struct {
	Week calendar.Week `json:"week"`
	Qty  float64       `json:"qty"`
}

// Series is the ordered weekly history of one product/UOM/sales-type
// combination. It is assembled by the ingest boundary and immutable inside
// the engine.
type Series struct {
	Key          SeriesKey     `json:"key"`
	Category     string        `json:"category,omitempty"`
	Observations []Observation `json:"observations"`
}

// Quantities returns the raw quantity sequence in week order.
func (s *Series) Quantities() []float64 {
	out := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = o.Qty
	}
	return out
}

// LastWeek returns the final observed week. Callers must check that the
// series is non-empty.
func (s *Series) LastWeek() calendar.Week {
	return s.Observations[len(s.Observations)-1].Week
}

// Validate performs basic structural validation of a series.
func (s *Series) Validate() error {
	if s.Key.ProductName == "" {
		return fmt.Errorf("product_name is required")
	}
	if s.Key.UOM == "" {
		return fmt.Errorf("product_uom is required")
	}
	if len(s.Observations) == 0 {
		return fmt.Errorf("series %s has no observations", s.Key)
	}
	prev := -1
	for i, o := range s.Observations {
		if o.Qty < 0 {
			return fmt.Errorf("series %s: negative quantity %.3f at position %d", s.Key, o.Qty, i)
		}
		idx := o.Week.Index()
		if idx <= prev {
			return fmt.Errorf("series %s: weeks not strictly increasing at position %d", s.Key, i)
		}
		prev = idx
	}
	return nil
}

// MethodLabel names the forecasting method selected for a series. Assigned
// once per series per run, never reassigned.
type MethodLabel string

const (
	MethodZeroInactive   MethodLabel = "ZERO_INACTIVE"
	MethodModelRecursive MethodLabel = "XGBOOST_RECURSIVE"
	MethodNaive          MethodLabel = "HEURISTIC_NAIVE"
	MethodRollingMean    MethodLabel = "HEURISTIC_ROLLING_MEAN"
	MethodExpSmooth      MethodLabel = "HEURISTIC_EXP_SMOOTH"
)

// MethodLabels lists every label in a stable order, for summary output.
var MethodLabels = []MethodLabel{
	MethodZeroInactive,
	MethodModelRecursive,
	MethodNaive,
	MethodRollingMean,
	MethodExpSmooth,
}

// ForecastRecord is one predicted quantity for one future week of one
// series.
type ForecastRecord struct {
	Key     SeriesKey     `json:"key"`
	Week    calendar.Week `json:"week"`
	Step    int           `json:"step"` // horizon index, 1..H
	Qty     float64       `json:"forecast_qty"`
	Method  MethodLabel   `json:"forecast_method"`
	RunID   string        `json:"run_id,omitempty"`
	Created time.Time     `json:"created_at,omitempty"`
}

// Stage names the pipeline stage at which a series failed.
type Stage string

const (
	StageSelect    Stage = "select"
	StageFeatures  Stage = "features"
	StagePredict   Stage = "predict"
	StageHeuristic Stage = "heuristic"
	StageSink      Stage = "sink"
)

// FailureRecord captures one series that produced no forecast. A failed
// series yields exactly one of these and zero ForecastRecords.
type FailureRecord struct {
	Key    SeriesKey `json:"key"`
	Reason string    `json:"reason"`
	Stage  Stage     `json:"stage"`
}

// RunSummary is the externally observable health signal of one run.
type RunSummary struct {
	RunID          string              `json:"run_id"`
	StartedAt      time.Time           `json:"started_at"`
	Duration       time.Duration       `json:"duration"`
	SeriesTotal    int                 `json:"series_total"`
	Forecasted     int                 `json:"forecasted"`
	Failed         int                 `json:"failed"`
	RecordsWritten int                 `json:"records_written"`
	ByMethod       map[MethodLabel]int `json:"by_method"`
}

// MethodPercent returns the share of successfully forecasted series that
// used the given method, in percent.
func (s *RunSummary) MethodPercent(m MethodLabel) float64 {
	if s.Forecasted == 0 {
		return 0
	}
	return float64(s.ByMethod[m]) / float64(s.Forecasted) * 100
}

// Params is the run-level configuration surface. Thresholds are global, not
// per product category.
type Params struct {
	// Horizon is the number of weeks to forecast ahead.
	Horizon int `json:"horizon"`
	// MinModelRows is the minimum number of weekly observations for a
	// series to be eligible for the shared regression model.
	MinModelRows int `json:"min_model_rows"`
	// InactiveGapWeeks is the trailing window without sales after which a
	// series is considered inactive.
	InactiveGapWeeks int `json:"inactive_gap_weeks"`
	// CVStableThreshold is the coefficient-of-variation bound below which
	// a series counts as stable.
	CVStableThreshold float64 `json:"cv_stable_threshold"`
	// TrendThreshold is the fraction of the series mean the absolute OLS
	// slope must exceed to count as trending.
	TrendThreshold float64 `json:"trend_threshold"`
	// SmoothingAlpha is the fixed exponential smoothing factor.
	SmoothingAlpha float64 `json:"smoothing_alpha"`
	// Workers bounds the per-series dispatch concurrency. 1 means
	// sequential.
	Workers int `json:"workers"`
	// AsOf anchors the inactivity check. Selection compares the last week
	// with a sale against this week.
	AsOf calendar.Week `json:"as_of"`
}

// DefaultParams returns the standard production configuration.
func DefaultParams() Params {
	return Params{
		Horizon:           2,
		MinModelRows:      10,
		InactiveGapWeeks:  4,
		CVStableThreshold: 0.3,
		TrendThreshold:    0.10,
		SmoothingAlpha:    0.3,
		Workers:           4,
		AsOf:              calendar.FromDate(time.Now().UTC()),
	}
}

// Validate checks parameter sanity.
func (p Params) Validate() error {
	if p.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive")
	}
	if p.MinModelRows <= 0 {
		return fmt.Errorf("min_model_rows must be positive")
	}
	if p.InactiveGapWeeks <= 0 {
		return fmt.Errorf("inactive_gap_weeks must be positive")
	}
	if p.SmoothingAlpha <= 0 || p.SmoothingAlpha > 1 {
		return fmt.Errorf("smoothing_alpha must be in (0, 1]")
	}
	if p.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}
