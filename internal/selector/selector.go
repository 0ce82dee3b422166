// Package selector classifies each series into a forecasting method.
//
// The decision procedure is a fixed priority list evaluated top to bottom;
// the first matching rule wins, so a series that is both inactive and
// trending is still inactive. Selection is pure: identical input sequences
// always produce the same label.
package selector

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/cache"
	"github.com/pricepally/demandcast/internal/calendar"
)

// SeriesStats are the raw-quantity statistics the rules consume. Computed
// on non-transformed quantities.
type SeriesStats struct {
	N           int
	Mean        float64
	Std         float64
	CV          float64 // Std/Mean; +Inf when Mean is 0
	Slope       float64 // OLS slope of quantity against week position
	LastNonzero calendar.Week
	HasNonzero  bool
}

// Selector routes series to methods under a fixed parameter set.
type Selector struct {
	params api.Params
	stats  *cache.TTLCache[string, SeriesStats]
}

// New creates a selector. The statistics cache is bounded; repeated runs
// over an unchanged population in serve mode hit it instead of recomputing.
func New(params api.Params) (*Selector, error) {
	stats, err := cache.New[string, SeriesStats](100_000, 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats cache: %w", err)
	}
	return &Selector{params: params, stats: stats}, nil
}

// Select assigns the method label for one series. The series must be
// non-empty and validated.
func (s *Selector) Select(series *api.Series) (api.MethodLabel, error) {
	if len(series.Observations) == 0 {
		return "", fmt.Errorf("series %s is empty", series.Key)
	}

	st := s.Stats(series)

	// 1. Inactive: no sales inside the trailing gap.
	if s.inactive(st) {
		return api.MethodZeroInactive, nil
	}

	// 2. Enough history for the shared model.
	if st.N >= s.params.MinModelRows {
		return api.MethodModelRecursive, nil
	}

	// 3. A single observation can only be repeated.
	if st.N == 1 {
		return api.MethodNaive, nil
	}

	// 4. Stable: low volatility and no material trend.
	trending := math.Abs(st.Slope) > s.params.TrendThreshold*st.Mean
	if st.CV < s.params.CVStableThreshold && !trending {
		return api.MethodNaive, nil
	}

	// 5. Trending series keep recency weighting.
	if trending {
		return api.MethodExpSmooth, nil
	}

	// 6. Default fallback.
	return api.MethodRollingMean, nil
}

func (s *Selector) inactive(st SeriesStats) bool {
	if !st.HasNonzero {
		return true
	}
	gap := calendar.WeeksBetween(st.LastNonzero, s.params.AsOf)
	return gap >= s.params.InactiveGapWeeks
}

// Stats computes (or recalls) the selection statistics for a series. The
// cache key covers the last week and a digest of the quantity sequence, so
// neither an extended history nor upstream revisions of existing weeks can
// reuse stale statistics.
func (s *Selector) Stats(series *api.Series) SeriesStats {
	key := fmt.Sprintf("%s#%s#%x", series.Key, series.LastWeek(), quantityDigest(series))
	if st, ok := s.stats.Get(key); ok {
		return st
	}
	st := Compute(series)
	s.stats.Set(key, st)
	return st
}

// quantityDigest hashes the full observation sequence of a series, weeks
// included, so any upstream revision changes the digest.
func quantityDigest(series *api.Series) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, o := range series.Observations {
		binary.LittleEndian.PutUint64(buf[:], uint64(o.Week.Index()))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(o.Qty))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// CacheStats exposes the statistics cache counters.
func (s *Selector) CacheStats() cache.Stats {
	return s.stats.Stats()
}

// Compute derives SeriesStats from scratch.
func Compute(series *api.Series) SeriesStats {
	obs := series.Observations
	st := SeriesStats{N: len(obs)}

	sum := 0.0
	for _, o := range obs {
		sum += o.Qty
		if o.Qty > 0 {
			st.LastNonzero = o.Week
			st.HasNonzero = true
		}
	}
	if st.N == 0 {
		return st
	}
	st.Mean = sum / float64(st.N)

	if st.N > 1 {
		ss := 0.0
		for _, o := range obs {
			d := o.Qty - st.Mean
			ss += d * d
		}
		st.Std = math.Sqrt(ss / float64(st.N-1))
	}

	if st.Mean > 0 {
		st.CV = st.Std / st.Mean
	} else {
		st.CV = math.Inf(1)
	}

	st.Slope = olsSlope(obs)
	return st
}

// olsSlope fits quantity against the 0-based week position with ordinary
// least squares and returns the slope.
func olsSlope(obs []api.Observation) float64 {
	n := float64(len(obs))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, o := range obs {
		x := float64(i)
		sumX += x
		sumY += o.Qty
		sumXY += x * o.Qty
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
