package insight

import (
	"time"

	"github.com/abralabs/abra/internal/analysis/anomaly"
	"github.com/abralabs/abra/internal/analysis/relevance"
	"github.com/abralabs/abra/internal/analysis/seasonality"
	"github.com/abralabs/abra/internal/analysis/trend"
	"github.com/abralabs/abra/internal/config"
	"github.com/abralabs/abra/pkg/models"
)

// Options bundles every analysis tunable the engine threads through the
// pipeline. Zero-value sub-configs fall back to their package defaults.
type Options struct {
	Trend       trend.Config
	Forecast    trend.ForecastConfig
	Seasonality seasonality.Config
	Relevance   relevance.Config
	Anomaly     anomaly.Config
	Fusion      FusionOptions

	// Concurrency bounds the batch fan-out across entities.
	Concurrency int

	// CacheTTL is how long per-channel analytics stay cached.
	CacheTTL time.Duration
}

// FusionOptions holds the cross-channel score fusion tunables.
type FusionOptions struct {
	// TrendBlend is the momentum share of a channel score: the
	// relevance base is scaled by (1-blend) + blend*momentum.
	TrendBlend float64

	// ChannelWeights weight each channel in the overall score.
	// Channels absent from the map count with weight 1.
	ChannelWeights map[models.Channel]float64

	// SpikeAlertPct and DropAlertPct are the month-over-month change
	// thresholds, in percent, that raise spike and drop alerts.
	SpikeAlertPct float64
	DropAlertPct  float64
}

// DefaultOptions returns the calibration defaults used when no config
// is loaded.
func DefaultOptions() Options {
	return Options{
		Trend:       trend.DefaultConfig(),
		Forecast:    trend.DefaultForecastConfig(),
		Seasonality: seasonality.DefaultConfig(),
		Relevance:   relevance.DefaultConfig(),
		Anomaly:     anomaly.DefaultConfig(),
		Fusion: FusionOptions{
			TrendBlend:     0.3,
			ChannelWeights: map[models.Channel]float64{},
			SpikeAlertPct:  30,
			DropAlertPct:   -20,
		},
		Concurrency: 4,
		CacheTTL:    time.Hour,
	}
}

// OptionsFrom maps a loaded application config onto engine options.
func OptionsFrom(cfg *config.Config) Options {
	e := cfg.Engine
	opts := Options{
		Trend: trend.Config{
			Bandwidth: e.Smoothing.Bandwidth,
			MinPoints: e.Smoothing.MinPoints,
			MaxGapRun: e.Smoothing.MaxGapRun,
		},
		Forecast: trend.ForecastConfig{
			Horizon:    e.Forecast.Horizon,
			BandFactor: e.Forecast.BandFactor,
		},
		Seasonality: seasonality.Config{MinStrength: e.Seasonality.MinStrength},
		Relevance: relevance.Config{
			KeywordWeight:   e.Relevance.KeywordWeight,
			ChannelWeight:   e.Relevance.ChannelWeight,
			RecencyWeight:   e.Relevance.RecencyWeight,
			RecencyHalfLife: time.Duration(e.Relevance.RecencyHalfLifeDays * float64(24*time.Hour)),
			ChannelBase:     channelMap(e.Relevance.ChannelBase),
			TopK:            e.Relevance.TopK,
		},
		Anomaly: anomaly.Config{
			Window:      e.Anomaly.Window,
			Sensitivity: e.Anomaly.Sensitivity,
		},
		Fusion: FusionOptions{
			TrendBlend:     e.Fusion.TrendBlend,
			ChannelWeights: channelMap(e.Fusion.ChannelWeights),
			SpikeAlertPct:  e.Fusion.SpikeAlertPct,
			DropAlertPct:   e.Fusion.DropAlertPct,
		},
		Concurrency: e.MaxConcurrentEntities,
		CacheTTL:    time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return opts
}

func channelMap(in map[string]float64) map[models.Channel]float64 {
	out := make(map[models.Channel]float64, len(in))
	for k, v := range in {
		out[models.Channel(k)] = v
	}
	return out
}
