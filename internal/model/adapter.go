// Package model wraps the trainable regression capability behind the
// contract the pipeline depends on: one batched Fit over the union of all
// model-eligible series, then read-only log-space predictions.
package model

import (
	"fmt"
	"log"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/features"
	"github.com/pricepally/demandcast/internal/regress"
)

// TrainingError marks a failure of the shared model fit. It is the only
// error class that aborts a whole run: without the model no model-routed
// series can be serviced.
type TrainingError struct {
	Err error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("model training failed: %v", e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// RowPredictor is what the recursive driver needs from a trained model.
type RowPredictor interface {
	// PredictRow returns the prediction in log space.
	PredictRow(row *features.Row) (float64, error)
}

// Adapter is the fitted global model plus the categorical encoding derived
// from its training corpus. Immutable after Train; safe for concurrent use.
type Adapter struct {
	model   *regress.Model
	encoder *features.Encoder
	rows    int
}

// Train fits the shared model over every training row of the given series.
// An empty corpus while at least one series was routed here indicates a
// selector invariant violation and returns a TrainingError.
func Train(seriesList []*api.Series, params regress.Params, logger *log.Logger) (*Adapter, error) {
	var rows []*features.Row
	for _, s := range seriesList {
		rows = append(rows, features.TrainingRows(s)...)
	}

	if len(rows) == 0 {
		if len(seriesList) == 0 {
			return nil, nil // nothing routed to the model this run
		}
		return nil, &TrainingError{Err: fmt.Errorf("no usable training rows from %d model-routed series", len(seriesList))}
	}

	encoder := features.FitEncoder(rows)

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = encoder.Encode(r)
		y[i] = r.Target
	}

	fitted, err := regress.Fit(x, y, params)
	if err != nil {
		return nil, &TrainingError{Err: err}
	}

	if logger != nil {
		p, c, u, st := encoder.VocabSizes()
		logger.Printf("trained global model: %d rows, %d trees, vocab=%d/%d/%d/%d",
			len(rows), fitted.NumTrees(), p, c, u, st)
	}

	return &Adapter{model: fitted, encoder: encoder, rows: len(rows)}, nil
}

// PredictRow encodes one feature row and predicts in log space.
func (a *Adapter) PredictRow(row *features.Row) (float64, error) {
	return a.model.Predict(a.encoder.Encode(row))
}

// TrainingRows reports the corpus size the model was fit on.
func (a *Adapter) TrainingRows() int {
	return a.rows
}
