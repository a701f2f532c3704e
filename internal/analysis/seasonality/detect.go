// Package seasonality detects dominant cycles in smoothed series via
// autocorrelation, plus calendar-month profiles for reporting.
package seasonality

import (
	"sort"

	"github.com/abralabs/abra/pkg/models"
)

// Config holds the detection tunables.
type Config struct {
	MinStrength float64 // autocorrelation a lag must clear to count as a period
}

// DefaultConfig returns the calibration defaults.
func DefaultConfig() Config {
	return Config{MinStrength: 0.3}
}

// parsimonyRatio: a shorter period within this fraction of the best
// peak's strength is preferred over a longer one.
const parsimonyRatio = 0.9

// Detect computes autocorrelation over lags 2..len/2 and returns the
// dominant period. Ties are broken toward the shortest period with
// comparable strength. When no lag clears the threshold the profile has
// zero strength and no peaks; absence of seasonality is a legitimate
// outcome, not an error.
func Detect(sm *models.SmoothedSeries, cfg Config) models.SeasonalProfile {
	if cfg.MinStrength <= 0 {
		cfg = DefaultConfig()
	}

	none := models.SeasonalProfile{Peaks: []int{}}
	n := len(sm.Values)
	maxLag := n / 2
	if maxLag < 2 {
		return none
	}

	acf := autocorrelation(sm.Values, maxLag)

	// Local autocorrelation peaks above the threshold.
	type candidate struct {
		lag      int
		strength float64
	}
	var candidates []candidate
	bestStrength := 0.0
	for lag := 2; lag <= maxLag; lag++ {
		r := acf[lag]
		if r < cfg.MinStrength {
			continue
		}
		left := acf[lag-1]
		right := r
		if lag+1 <= maxLag {
			right = acf[lag+1]
		}
		if r >= left && r >= right {
			candidates = append(candidates, candidate{lag: lag, strength: r})
			if r > bestStrength {
				bestStrength = r
			}
		}
	}
	if len(candidates) == 0 {
		return none
	}

	// Parsimony: shortest period whose strength is comparable to the best.
	chosen := candidates[0]
	for _, c := range candidates {
		if c.strength >= parsimonyRatio*bestStrength {
			chosen = c
			break
		}
	}

	period := chosen.lag
	strength := chosen.strength
	if strength > 1 {
		strength = 1
	}

	return models.SeasonalProfile{
		Period:   &period,
		Strength: strength,
		Peaks:    cyclePeaks(sm.Values, period),
	}
}

// autocorrelation returns r(0..maxLag) with the full-series variance as
// denominator, so r(0) == 1 and |r| <= 1.
func autocorrelation(values []float64, maxLag int) []float64 {
	n := len(values)
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var denom float64
	for _, v := range values {
		denom += (v - mean) * (v - mean)
	}

	acf := make([]float64, maxLag+1)
	if denom == 0 {
		return acf // constant series has no cycles
	}
	for lag := 0; lag <= maxLag; lag++ {
		var num float64
		for t := 0; t+lag < n; t++ {
			num += (values[t] - mean) * (values[t+lag] - mean)
		}
		acf[lag] = num / denom
	}
	return acf
}

// cyclePeaks folds the series into the period and returns the offsets
// where the folded mean crests (within 5% of the fold's range from the
// maximum).
func cyclePeaks(values []float64, period int) []int {
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range values {
		off := i % period
		sums[off] += v
		counts[off]++
	}

	folded := make([]float64, period)
	maxMean, minMean := 0.0, 0.0
	for off := 0; off < period; off++ {
		if counts[off] > 0 {
			folded[off] = sums[off] / float64(counts[off])
		}
		if off == 0 || folded[off] > maxMean {
			maxMean = folded[off]
		}
		if off == 0 || folded[off] < minMean {
			minMean = folded[off]
		}
	}

	tolerance := 0.05 * (maxMean - minMean)
	var peaks []int
	for off := 0; off < period; off++ {
		if folded[off] >= maxMean-tolerance {
			peaks = append(peaks, off)
		}
	}
	sort.Ints(peaks)
	return peaks
}
