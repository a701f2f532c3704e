package trend

import (
	"math"

	"github.com/abralabs/abra/pkg/models"
)

// Lookback offsets in samples, sized for weekly-resolution series:
// one month back is 4 samples behind the latest, one quarter 12, one
// year 51.
const (
	monthOffset   = 5
	quarterOffset = 13
	yearOffset    = 52
	minChangeLen  = 12
)

// Changes computes month/quarter/year percent deltas and the mean over
// the observed (non-gap) values. Series shorter than a quarter fall
// back to the oldest observed value for the longer lookbacks.
func Changes(ts *models.TimeSeries) (*models.ChangeStats, error) {
	values := make([]float64, 0, len(ts.Points))
	for _, p := range ts.Points {
		if p.Value != nil {
			values = append(values, *p.Value)
		}
	}
	if len(values) < minChangeLen {
		return nil, &InsufficientHistoryError{Got: len(values), Needed: minChangeLen}
	}

	current := values[len(values)-1]
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return &models.ChangeStats{
		MonthChange:   percentChange(current, lookback(values, monthOffset)),
		QuarterChange: percentChange(current, lookback(values, quarterOffset)),
		YearChange:    percentChange(current, lookback(values, yearOffset)),
		Mean:          sum / float64(len(values)),
	}, nil
}

func lookback(values []float64, offset int) float64 {
	if len(values) >= offset {
		return values[len(values)-offset]
	}
	return values[0]
}

func percentChange(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Volatility returns the standard deviation of log returns over the
// values, a scale-free measure of how jumpy the series is.
func Volatility(values []float64) float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		prev := math.Max(values[i-1], 0.1)
		cur := math.Max(values[i], 0.1)
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

// RiskFor buckets a volatility value into the radar's risk tiers.
func RiskFor(volatility float64) models.RiskLevel {
	switch {
	case volatility > 0.5:
		return models.RiskHigh
	case volatility > 0.2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
