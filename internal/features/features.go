// Package features derives model inputs from a weekly quantity sequence.
//
// All values are handled in log space (log1p of the raw quantity) and every
// window is trailing: a row built for target index t only ever reads indexes
// strictly below t, including during recursive forecasting where the tail of
// the history is synthetic.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/calendar"
)

// ErrInsufficientHistory signals that a required lag or rolling window falls
// before the start of the sequence. Callers recover by routing the series to
// a heuristic; it is never a run-level failure.
var ErrInsufficientHistory = errors.New("insufficient history for feature construction")

// Lag offsets and rolling windows, in weeks.
var (
	LagOffsets = []int{1, 4, 8}

	meanWindows = []int{4, 8}
	stdWindow   = 4
)

// minHistory is the deepest lookback any feature needs.
const minHistory = 8

// Row is one feature row for a (series, target week) pair. Categorical
// context passes through unencoded; the model adapter owns the encoding.
type Row struct {
	// Target is the log-transformed quantity at the target week. Only
	// meaningful for training rows; zero for inference rows.
	Target float64

	Lags     [3]float64 // log-space values at t-1, t-4, t-8
	RollMean [2]float64 // trailing mean over 4 and 8 weeks
	RollStd  float64    // trailing sample std over 4 weeks
	MonthSin float64
	MonthCos float64

	ProductName string
	Category    string
	UOM         string
	SalesType   string
	Week        calendar.Week
}

// Log1p transforms a raw quantity into model space.
func Log1p(qty float64) float64 {
	return math.Log1p(qty)
}

// Expm1 inverts Log1p. The result of Expm1(Log1p(x)) is non-negative for
// any x >= 0.
func Expm1(y float64) float64 {
	return math.Expm1(y)
}

// Build constructs the feature row for target index t over the log-space
// sequence y. t may equal len(y), which is the next unobserved week.
// week is the calendar week of the target.
func Build(key api.SeriesKey, category string, y []float64, t int, week calendar.Week) (*Row, error) {
	if t < 0 || t > len(y) {
		return nil, fmt.Errorf("target index %d out of range [0, %d]", t, len(y))
	}
	if t < minHistory {
		return nil, fmt.Errorf("target index %d: %w", t, ErrInsufficientHistory)
	}

	row := &Row{
		ProductName: key.ProductName,
		Category:    category,
		UOM:         key.UOM,
		SalesType:   key.SalesType,
		Week:        week,
	}
	if t < len(y) {
		row.Target = y[t]
	}

	for i, lag := range LagOffsets {
		row.Lags[i] = y[t-lag]
	}
	for i, w := range meanWindows {
		row.RollMean[i] = mean(y[t-w : t])
	}
	row.RollStd = sampleStd(y[t-stdWindow : t])

	angle := 2 * math.Pi * float64(week.Month) / 12
	row.MonthSin = math.Sin(angle)
	row.MonthCos = math.Cos(angle)

	return row, nil
}

// TrainingRows builds every usable training row of a series: one row per
// observed week with full lag coverage, each targeting its own observed
// quantity.
func TrainingRows(s *api.Series) []*Row {
	y := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		y[i] = Log1p(o.Qty)
	}

	var rows []*Row
	for t := minHistory; t < len(y); t++ {
		row, err := Build(s.Key, s.Category, y, t, s.Observations[t].Week)
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 denominator standard deviation, matching trailing
// rolling-std semantics.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
