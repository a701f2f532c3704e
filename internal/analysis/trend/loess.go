// Package trend implements local-regression smoothing, short-horizon
// forecasting and change statistics over canonical time series.
package trend

import (
	"errors"
	"math"
	"time"

	"github.com/abralabs/abra/pkg/models"
)

// Config holds the smoothing tunables.
type Config struct {
	Bandwidth float64 // smoothing window as a fraction of series length
	MinPoints int     // minimum observed points required to smooth
	MaxGapRun int     // longest gap run that may be interpolated silently
}

// DefaultConfig returns the calibration defaults.
func DefaultConfig() Config {
	return Config{Bandwidth: 0.3, MinPoints: 8, MaxGapRun: 4}
}

// Smooth applies a tricube-weighted local linear regression (LOESS) to
// the series. Gaps are linearly interpolated first; a gap run longer
// than cfg.MaxGapRun marks the result incomplete and returns a
// *DataGapError alongside the smoothed series, which is still computed
// on the interpolated values. Too few observed points returns only an
// *InsufficientHistoryError.
//
// The output has the same length and timestamps as the input, and the
// same input always produces the same output.
func Smooth(ts *models.TimeSeries, cfg Config) (*models.SmoothedSeries, error) {
	if cfg.MinPoints <= 0 {
		cfg = DefaultConfig()
	}

	observed := ts.ObservedCount()
	if observed < cfg.MinPoints {
		return nil, &InsufficientHistoryError{Got: observed, Needed: cfg.MinPoints}
	}

	values, longestGap := interpolate(ts.Points)

	var gapErr error
	if longestGap > cfg.MaxGapRun {
		gapErr = &DataGapError{Run: longestGap, Max: cfg.MaxGapRun}
	}

	smoothed := loess(values, cfg.Bandwidth)

	timestamps := make([]time.Time, len(ts.Points))
	for i, p := range ts.Points {
		timestamps[i] = p.Timestamp
	}

	out := &models.SmoothedSeries{
		EntityID:   ts.EntityID,
		Channel:    ts.Channel,
		Resolution: ts.Resolution,
		Timestamps: timestamps,
		Values:     smoothed,
		Incomplete: gapErr != nil,
	}
	return out, gapErr
}

// IsDegraded reports whether err is one of the per-channel degradation
// errors rather than a hard failure.
func IsDegraded(err error) bool {
	var ih *InsufficientHistoryError
	var dg *DataGapError
	return errors.As(err, &ih) || errors.As(err, &dg)
}

// interpolate fills nil gaps linearly between observed neighbors and
// extends edge gaps with the nearest observed value. It returns the
// filled values and the longest gap run seen.
func interpolate(points []models.Point) ([]float64, int) {
	n := len(points)
	values := make([]float64, n)
	known := make([]bool, n)
	for i, p := range points {
		if p.Value != nil {
			values[i] = *p.Value
			known[i] = true
		}
	}

	longest := 0
	i := 0
	for i < n {
		if known[i] {
			i++
			continue
		}
		// Gap run [i, j).
		j := i
		for j < n && !known[j] {
			j++
		}
		if run := j - i; run > longest {
			longest = run
		}

		switch {
		case i == 0 && j == n:
			// Nothing observed at all; caller guarded against this.
		case i == 0:
			for k := i; k < j; k++ {
				values[k] = values[j]
			}
		case j == n:
			for k := i; k < j; k++ {
				values[k] = values[i-1]
			}
		default:
			lo, hi := values[i-1], values[j]
			span := float64(j - (i - 1))
			for k := i; k < j; k++ {
				frac := float64(k-(i-1)) / span
				values[k] = lo + (hi-lo)*frac
			}
		}
		i = j
	}
	return values, longest
}

// loess smooths values with locally weighted linear regression using a
// tricube kernel over the nearest-neighbor window.
func loess(values []float64, bandwidth float64) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	if bandwidth <= 0 || bandwidth > 1 {
		bandwidth = 0.3
	}

	window := int(math.Ceil(bandwidth * float64(n)))
	if window < 3 {
		window = 3
	}
	if window > n {
		window = n
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		lo, hi := neighborWindow(i, n, window)
		out[i] = fitLocal(values, i, lo, hi)
	}
	return out
}

// neighborWindow returns the [lo, hi] index range of the `window`
// nearest neighbors of i.
func neighborWindow(i, n, window int) (int, int) {
	lo := i - window/2
	hi := lo + window - 1
	if lo < 0 {
		lo = 0
		hi = window - 1
	}
	if hi > n-1 {
		hi = n - 1
		lo = hi - window + 1
		if lo < 0 {
			lo = 0
		}
	}
	return lo, hi
}

// fitLocal performs a weighted linear fit over values[lo..hi] and
// evaluates it at index i.
func fitLocal(values []float64, i, lo, hi int) float64 {
	maxDist := math.Max(float64(i-lo), float64(hi-i))

	var sw, swx, swy, swxx, swxy float64
	for j := lo; j <= hi; j++ {
		w := 1.0
		if maxDist > 0 {
			d := math.Abs(float64(j-i)) / maxDist
			u := 1 - d*d*d
			w = u * u * u
		}
		if w <= 0 {
			continue
		}
		x := float64(j)
		y := values[j]
		sw += w
		swx += w * x
		swy += w * y
		swxx += w * x * x
		swxy += w * x * y
	}
	if sw == 0 {
		return values[i]
	}

	denom := sw*swxx - swx*swx
	if math.Abs(denom) < 1e-12 {
		return swy / sw
	}
	slope := (sw*swxy - swx*swy) / denom
	intercept := (swy - slope*swx) / sw
	return intercept + slope*float64(i)
}
