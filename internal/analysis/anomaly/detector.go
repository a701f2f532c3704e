// Package anomaly flags statistically significant spikes in sub-entity
// series against a trailing rolling baseline.
package anomaly

import (
	"math"
	"sort"

	"github.com/abralabs/abra/pkg/models"
)

// Config holds the detection tunables.
type Config struct {
	Window      int     // trailing baseline window, in samples
	Sensitivity float64 // spike threshold, in std-devs above the baseline
}

// DefaultConfig returns the calibration defaults.
func DefaultConfig() Config {
	return Config{Window: 4, Sensitivity: 2.0}
}

// magnitudeCap bounds the reported magnitude when the trailing baseline
// has (near-)zero variance: the jump is unambiguous but its size in
// std-devs is not meaningful.
const magnitudeCap = 50.0

// DetectSpikes scans each sub-entity's smoothed series with a trailing
// moving average and moving standard deviation. A sample is a spike
// when it exceeds the baseline mean by more than Sensitivity std-devs.
// The first Window samples of a series are never flagged (no baseline),
// and a flat baseline with a flat sample can never spike. Results are
// ordered by magnitude, strongest first.
func DetectSpikes(subSeries map[string]*models.SmoothedSeries, cfg Config) []models.Anomaly {
	if cfg.Window <= 0 || cfg.Sensitivity <= 0 {
		cfg = DefaultConfig()
	}

	var anomalies []models.Anomaly
	ids := make([]string, 0, len(subSeries))
	for id := range subSeries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sm := subSeries[id]
		if sm == nil {
			continue
		}
		anomalies = append(anomalies, scanSeries(id, sm.Values, cfg)...)
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Magnitude > anomalies[j].Magnitude
	})
	return anomalies
}

func scanSeries(id string, values []float64, cfg Config) []models.Anomaly {
	var out []models.Anomaly
	for i := cfg.Window; i < len(values); i++ {
		mean, sigma := rollingStats(values[i-cfg.Window : i])
		v := values[i]

		if sigma > 0 {
			if v > mean+cfg.Sensitivity*sigma {
				out = append(out, models.Anomaly{
					SubEntityID: id,
					SpikeIndex:  i,
					Magnitude:   math.Min((v-mean)/sigma, magnitudeCap),
					Window:      cfg.Window,
					Value:       v,
					Baseline:    mean,
				})
			}
			continue
		}

		// Flat baseline: any strict jump is a spike, at the capped
		// magnitude; a value equal to the baseline never is.
		if v > mean {
			out = append(out, models.Anomaly{
				SubEntityID: id,
				SpikeIndex:  i,
				Magnitude:   magnitudeCap,
				Window:      cfg.Window,
				Value:       v,
				Baseline:    mean,
			})
		}
	}
	return out
}

// rollingStats returns the mean and population standard deviation of
// the window.
func rollingStats(window []float64) (mean, sigma float64) {
	n := float64(len(window))
	for _, v := range window {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	return mean, math.Sqrt(variance)
}
