package seasonality

import (
	"math"

	"github.com/abralabs/abra/pkg/models"
)

// Monthly groups the observed values by calendar month and scores the
// spread as the std/mean ratio of the monthly averages, capped at 100.
func Monthly(ts *models.TimeSeries) models.MonthlyProfile {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range ts.Points {
		if p.Value == nil {
			continue
		}
		month := p.Timestamp.Format("Jan")
		sums[month] += *p.Value
		counts[month]++
	}

	months := make(map[string]float64, len(sums))
	total := 0.0
	for m, sum := range sums {
		avg := sum / float64(counts[m])
		months[m] = avg
		total += avg
	}
	if len(months) == 0 {
		return models.MonthlyProfile{Months: months}
	}

	overall := total / float64(len(months))
	score := 0.0
	if overall > 0 {
		variance := 0.0
		for _, avg := range months {
			variance += (avg - overall) * (avg - overall)
		}
		variance /= float64(len(months))
		score = math.Min(math.Sqrt(variance)/overall*100, 100)
	}

	return models.MonthlyProfile{Months: months, Overall: overall, Score: score}
}
