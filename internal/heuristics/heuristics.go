// Package heuristics holds the deterministic fallback forecasters used for
// series that cannot be served by the shared regression model.
//
// Every forecaster takes the raw quantity history and a horizon and returns
// one non-negative value per horizon step. An empty history is a
// precondition violation reported to the caller; it is never silently
// defaulted.
package heuristics

import "fmt"

func errEmpty(name string) error {
	return fmt.Errorf("%s forecast requires a non-empty series", name)
}

// Zero forecasts no demand. Used only for inactive series.
func Zero(series []float64, horizon int) ([]float64, error) {
	if len(series) == 0 {
		return nil, errEmpty("zero")
	}
	return make([]float64, horizon), nil
}

// Naive repeats the last observed value across the horizon.
func Naive(series []float64, horizon int) ([]float64, error) {
	if len(series) == 0 {
		return nil, errEmpty("naive")
	}
	last := series[len(series)-1]
	if last < 0 {
		last = 0
	}
	return constant(last, horizon), nil
}

// RollingMean repeats the mean of the trailing window (or the full series
// when shorter) across the horizon. The default fallback.
func RollingMean(series []float64, horizon, window int) ([]float64, error) {
	if len(series) == 0 {
		return nil, errEmpty("rolling mean")
	}
	if window <= 0 || window > len(series) {
		window = len(series)
	}
	tail := series[len(series)-window:]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	val := sum / float64(len(tail))
	if val < 0 {
		val = 0
	}
	return constant(val, horizon), nil
}

// ExpSmooth applies single exponential smoothing over the full history and
// extrapolates the final level flat across the horizon. Used for trending
// series, where it weights recent observations more heavily than a plain
// mean.
func ExpSmooth(series []float64, horizon int, alpha float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, errEmpty("exponential smoothing")
	}
	level := series[0]
	for _, v := range series[1:] {
		level = alpha*v + (1-alpha)*level
	}
	if level < 0 {
		level = 0
	}
	return constant(level, horizon), nil
}

func constant(v float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = v
	}
	return out
}
