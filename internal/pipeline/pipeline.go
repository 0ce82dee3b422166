// Package pipeline orchestrates one forecast run end to end: method
// selection for every series, a single shared model fit, concurrent
// per-series forecasting inside a failure boundary, and delivery to the
// configured sink.
//
// The failure unit is one series. Any error or panic while forecasting a
// series yields exactly one FailureRecord and zero ForecastRecords for it;
// the rest of the fleet is unaffected. The only fatal error class is a
// failed shared model fit, which aborts the run before dispatch.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/heuristics"
	"github.com/pricepally/demandcast/internal/metrics"
	"github.com/pricepally/demandcast/internal/model"
	"github.com/pricepally/demandcast/internal/regress"
	"github.com/pricepally/demandcast/internal/runlog"
	"github.com/pricepally/demandcast/internal/selector"
	"github.com/pricepally/demandcast/internal/sink"
	otelx "github.com/pricepally/demandcast/pkg/otel"
)

const tracerName = "demandcast/pipeline"

// rollingWindow is the trailing window of the rolling-mean fallback.
const rollingWindow = 4

// Engine runs forecast passes over a series population. Safe for repeated
// Run calls; the selector statistics cache persists across runs.
type Engine struct {
	params  api.Params
	fit     regress.Params
	sel     *selector.Selector
	sink    sink.Sink
	metrics *metrics.Metrics
	journal *runlog.Journal
	logger  *log.Logger
}

// Options configure optional engine collaborators.
type Options struct {
	// Fit overrides the boosting hyperparameters. Zero value means defaults.
	Fit regress.Params
	// Metrics receives run counters. Nil disables instrumentation.
	Metrics *metrics.Metrics
	// Journal receives failure and summary entries. Nil disables journaling.
	Journal *runlog.Journal
	// Logger receives progress output. Nil disables logging.
	Logger *log.Logger
}

// New creates an engine writing to the given sink.
func New(params api.Params, out sink.Sink, opts Options) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("sink is required")
	}

	sel, err := selector.New(params)
	if err != nil {
		return nil, err
	}

	fit := opts.Fit
	if fit.NumTrees == 0 {
		fit = regress.DefaultParams()
	}

	return &Engine{
		params:  params,
		fit:     fit,
		sel:     sel,
		sink:    out,
		metrics: opts.Metrics,
		journal: opts.Journal,
		logger:  opts.Logger,
	}, nil
}

// assignment pairs a series with its selected method.
type assignment struct {
	series *api.Series
	method api.MethodLabel
}

// outcome is the result of forecasting one series: either records or a
// failure, never both, never neither.
type outcome struct {
	method  api.MethodLabel
	records []api.ForecastRecord
	failure *api.FailureRecord
}

// Run executes one forecast pass over the population. The returned summary
// and failure list cover every input series: forecasted plus failed equals
// the population size. A non-nil error means the run was aborted and no
// sink writes beyond those already performed should be trusted.
func (e *Engine) Run(ctx context.Context, population []*api.Series) (*api.RunSummary, []api.FailureRecord, error) {
	runID := newRunID()
	started := time.Now()

	ctx, span := otelx.StartSpan(ctx, tracerName, "forecast.run",
		attribute.String("run.id", runID),
		attribute.Int("run.series", len(population)),
	)
	defer span.End()

	if e.metrics != nil {
		e.metrics.RunsTotal.Inc()
		e.metrics.SeriesTotal.Add(float64(len(population)))
	}
	if e.logger != nil {
		e.logger.Printf("run %s: %d series, horizon=%d, workers=%d",
			runID, len(population), e.params.Horizon, e.params.Workers)
	}

	var failures []api.FailureRecord

	// Selection pass: label every series up front so the model fit sees its
	// full corpus before any forecasting starts.
	assignments := make([]assignment, 0, len(population))
	var modelBound []*api.Series
	for _, s := range population {
		method, err := e.sel.Select(s)
		if err != nil {
			failures = append(failures, api.FailureRecord{
				Key:    s.Key,
				Reason: err.Error(),
				Stage:  api.StageSelect,
			})
			continue
		}
		assignments = append(assignments, assignment{series: s, method: method})
		if method == api.MethodModelRecursive {
			modelBound = append(modelBound, s)
		}
	}

	adapter, err := e.train(ctx, modelBound)
	if err != nil {
		otelx.RecordError(span, err, "shared model fit failed")
		return nil, failures, err
	}

	outcomes := e.dispatch(ctx, runID, assignments, adapter)

	summary := &api.RunSummary{
		RunID:     runID,
		StartedAt: started,
		ByMethod:  make(map[api.MethodLabel]int),
	}
	summary.SeriesTotal = len(population)

	for _, o := range outcomes {
		if o.failure != nil {
			failures = append(failures, *o.failure)
			continue
		}
		summary.Forecasted++
		summary.RecordsWritten += len(o.records)
		summary.ByMethod[o.method]++
		if e.metrics != nil {
			e.metrics.ForecastRecords.Add(float64(len(o.records)))
			e.metrics.SeriesByMethod.WithLabelValues(string(o.method)).Inc()
		}
	}
	summary.Failed = len(failures)
	summary.Duration = time.Since(started)

	if e.metrics != nil {
		e.metrics.SeriesFailed.Add(float64(len(failures)))
		e.metrics.RunSeconds.Observe(summary.Duration.Seconds())
	}
	if e.journal != nil {
		for _, f := range failures {
			if err := e.journal.Failure(runID, f); err != nil && e.logger != nil {
				e.logger.Printf("run %s: journal write failed: %v", runID, err)
			}
		}
		if err := e.journal.Summary(summary); err != nil && e.logger != nil {
			e.logger.Printf("run %s: journal summary failed: %v", runID, err)
		}
	}
	if e.logger != nil {
		e.logger.Printf("run %s: forecasted=%d failed=%d records=%d in %s",
			runID, summary.Forecasted, summary.Failed, summary.RecordsWritten,
			summary.Duration.Round(time.Millisecond))
		for _, m := range api.MethodLabels {
			if n := summary.ByMethod[m]; n > 0 {
				e.logger.Printf("run %s:   %-24s %5d (%.1f%%)", runID, m, n, summary.MethodPercent(m))
			}
		}
	}

	span.SetAttributes(
		attribute.Int("run.forecasted", summary.Forecasted),
		attribute.Int("run.failed", summary.Failed),
	)
	return summary, failures, nil
}

// train fits the shared model over the model-bound slice of the population.
// A TrainingError here is fatal for the run.
func (e *Engine) train(ctx context.Context, modelBound []*api.Series) (*model.Adapter, error) {
	if len(modelBound) == 0 {
		return nil, nil
	}

	_, span := otelx.StartSpan(ctx, tracerName, "forecast.train",
		attribute.Int("train.series", len(modelBound)),
	)
	defer span.End()

	started := time.Now()
	adapter, err := model.Train(modelBound, e.fit, e.logger)
	if err != nil {
		otelx.RecordError(span, err, "")
		return nil, err
	}

	if e.metrics != nil && adapter != nil {
		e.metrics.TrainSeconds.Set(time.Since(started).Seconds())
		e.metrics.TrainRows.Set(float64(adapter.TrainingRows()))
	}
	return adapter, nil
}

// dispatch fans the assignments out over the worker pool and collects one
// outcome per assignment.
func (e *Engine) dispatch(ctx context.Context, runID string, assignments []assignment, adapter *model.Adapter) []outcome {
	jobs := make(chan assignment)
	results := make(chan outcome, len(assignments))

	var wg sync.WaitGroup
	for w := 0; w < e.params.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				results <- e.forecastOne(ctx, runID, a, adapter)
			}
		}()
	}

	for _, a := range assignments {
		jobs <- a
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]outcome, 0, len(assignments))
	for o := range results {
		out = append(out, o)
	}
	return out
}

// forecastOne runs the full per-series path inside the failure boundary:
// forecast, stamp, deliver. A panic anywhere in the path becomes a failure
// record rather than taking the run down.
func (e *Engine) forecastOne(ctx context.Context, runID string, a assignment, adapter *model.Adapter) (out outcome) {
	out.method = a.method

	defer func() {
		if r := recover(); r != nil {
			out.records = nil
			out.failure = &api.FailureRecord{
				Key:    a.series.Key,
				Reason: fmt.Sprintf("panic: %v", r),
				Stage:  api.StagePredict,
			}
			if e.logger != nil {
				e.logger.Printf("run %s: series %s panicked: %v", runID, a.series.Key, r)
			}
		}
	}()

	records, stage, err := e.forecast(a, adapter)
	if err != nil {
		out.failure = &api.FailureRecord{Key: a.series.Key, Reason: err.Error(), Stage: stage}
		return out
	}

	now := time.Now().UTC()
	for i := range records {
		records[i].RunID = runID
		records[i].Created = now
	}

	if err := e.sink.WriteForecasts(ctx, runID, records); err != nil {
		out.failure = &api.FailureRecord{Key: a.series.Key, Reason: err.Error(), Stage: api.StageSink}
		return out
	}

	out.records = records
	return out
}

// forecast produces the horizon records for one series using its assigned
// method. The returned stage localizes any error for the failure record.
func (e *Engine) forecast(a assignment, adapter *model.Adapter) ([]api.ForecastRecord, api.Stage, error) {
	s := a.series

	if a.method == api.MethodModelRecursive {
		if adapter == nil {
			return nil, api.StagePredict, fmt.Errorf("series %s routed to model but no model was trained", s.Key)
		}
		records, err := model.NewDriver(adapter, e.params.Horizon).Forecast(s)
		if err != nil {
			return nil, api.StagePredict, err
		}
		return records, "", nil
	}

	qty := s.Quantities()
	var (
		values []float64
		err    error
	)
	switch a.method {
	case api.MethodZeroInactive:
		values, err = heuristics.Zero(qty, e.params.Horizon)
	case api.MethodNaive:
		values, err = heuristics.Naive(qty, e.params.Horizon)
	case api.MethodRollingMean:
		values, err = heuristics.RollingMean(qty, e.params.Horizon, rollingWindow)
	case api.MethodExpSmooth:
		values, err = heuristics.ExpSmooth(qty, e.params.Horizon, e.params.SmoothingAlpha)
	default:
		return nil, api.StageSelect, fmt.Errorf("unknown method %q for series %s", a.method, s.Key)
	}
	if err != nil {
		return nil, api.StageHeuristic, err
	}

	week := s.LastWeek()
	records := make([]api.ForecastRecord, 0, len(values))
	for i, v := range values {
		week = week.Next()
		records = append(records, api.ForecastRecord{
			Key:    s.Key,
			Week:   week,
			Step:   i + 1,
			Qty:    v,
			Method: a.method,
		})
	}
	return records, "", nil
}

// newRunID returns a unique identifier of the form run-20260102-150405-ab12cd34.
func newRunID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("run-%s", time.Now().UTC().Format("20060102-150405.000000"))
	}
	return fmt.Sprintf("run-%s-%s", time.Now().UTC().Format("20060102-150405"), hex.EncodeToString(buf))
}
