package model

import (
	"fmt"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/features"
)

// Driver produces multi-step forecasts by recursion: each step's prediction
// is appended to a per-series working buffer and becomes history for the
// next step's features. The buffer is owned by the call, never shared, and
// the original series is not mutated.
type Driver struct {
	model   RowPredictor
	horizon int
}

// NewDriver creates a recursive forecast driver over a trained model.
func NewDriver(model RowPredictor, horizon int) *Driver {
	return &Driver{model: model, horizon: horizon}
}

// Forecast generates one record per horizon step for the series. Any error
// mid-recursion fails the whole series; no partial records are returned.
func (d *Driver) Forecast(s *api.Series) ([]api.ForecastRecord, error) {
	// Working buffer in log space, seeded with the observed history and
	// grown with each synthetic prediction.
	y := make([]float64, len(s.Observations), len(s.Observations)+d.horizon)
	for i, o := range s.Observations {
		y[i] = features.Log1p(o.Qty)
	}

	week := s.LastWeek()
	records := make([]api.ForecastRecord, 0, d.horizon)

	for step := 1; step <= d.horizon; step++ {
		week = week.Next()

		// Features for the next unobserved week see only indexes below
		// len(y): the observed history plus predictions from earlier
		// steps, never this step or later.
		row, err := features.Build(s.Key, s.Category, y, len(y), week)
		if err != nil {
			return nil, fmt.Errorf("step %d/%d: %w", step, d.horizon, err)
		}

		predLog, err := d.model.PredictRow(row)
		if err != nil {
			return nil, fmt.Errorf("step %d/%d: %w", step, d.horizon, err)
		}

		qty := features.Expm1(predLog)
		if qty < 0 {
			// Floating-point artifacts can push the inverse transform
			// slightly negative; a negative quantity must not feed the
			// next step's lag features.
			qty = 0
		}

		y = append(y, features.Log1p(qty))
		records = append(records, api.ForecastRecord{
			Key:    s.Key,
			Week:   week,
			Step:   step,
			Qty:    qty,
			Method: api.MethodModelRecursive,
		})
	}

	return records, nil
}
