package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the forecast engine.
type Metrics struct {
	RunsTotal       prometheus.Counter
	SeriesTotal     prometheus.Counter
	ForecastRecords prometheus.Counter
	SeriesFailed    prometheus.Counter
	SeriesByMethod  *prometheus.CounterVec
	TrainSeconds    prometheus.Gauge
	TrainRows       prometheus.Gauge
	RunSeconds      prometheus.Histogram
}

// New creates and registers all metrics on the given registerer; pass nil
// to use the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dc_runs_total",
			Help: "Total number of forecast runs started",
		}),
		SeriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dc_series_total",
			Help: "Total number of series dispatched across all runs",
		}),
		ForecastRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "dc_forecast_records_total",
			Help: "Total number of forecast records produced",
		}),
		SeriesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dc_series_failed_total",
			Help: "Number of series that yielded a failure record instead of forecasts",
		}),
		SeriesByMethod: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dc_series_by_method_total",
				Help: "Number of series forecasted per method label",
			},
			[]string{"method"},
		),
		TrainSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dc_train_seconds",
			Help: "Wall time of the most recent shared model fit",
		}),
		TrainRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dc_train_rows",
			Help: "Training corpus size of the most recent shared model fit",
		}),
		RunSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dc_run_seconds",
			Help:    "End-to-end duration of forecast runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}
