package trend

import (
	"math"
	"time"

	"github.com/abralabs/abra/pkg/models"
)

// ForecastConfig holds the forecasting tunables.
type ForecastConfig struct {
	Horizon    int     // samples to predict beyond the observed range
	BandFactor float64 // band half-width growth per step, as a multiple of residual σ
}

// DefaultForecastConfig returns the calibration defaults.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{Horizon: 6, BandFactor: 0.5}
}

// Forecast extrapolates the tail of a smoothed series. A linear and a
// quadratic model are fit to the tail window and the better in-sample
// R² wins, echoing the best-fit trend selection of the original radar.
// The confidence band widens proportionally to forecast distance. The
// forecast is advisory: it claims nothing beyond directional
// continuation of the recent local trend.
func Forecast(sm *models.SmoothedSeries, cfg ForecastConfig) (*models.ForecastSeries, error) {
	if cfg.Horizon <= 0 {
		cfg = DefaultForecastConfig()
	}
	n := len(sm.Values)
	if n < 3 {
		return nil, &InsufficientHistoryError{Got: n, Needed: 3}
	}

	// Anchor on the tail so old regimes do not drag the extrapolation.
	tail := cfg.Horizon * 2
	if tail < 6 {
		tail = 6
	}
	if tail > n {
		tail = n
	}
	y := sm.Values[n-tail:]

	linFit := fitPolynomial(y, 1)
	best := linFit
	if tail >= 6 {
		if quadFit := fitPolynomial(y, 2); quadFit.rsq > linFit.rsq {
			best = quadFit
		}
	}

	step := sm.Resolution.Step()
	if len(sm.Timestamps) >= 2 {
		step = sm.Timestamps[len(sm.Timestamps)-1].Sub(sm.Timestamps[len(sm.Timestamps)-2])
	}
	last := sm.Timestamps[len(sm.Timestamps)-1]

	points := make([]models.ForecastPoint, 0, cfg.Horizon)
	for h := 1; h <= cfg.Horizon; h++ {
		x := float64(tail - 1 + h)
		v := best.eval(x)
		half := best.sigma * (1 + cfg.BandFactor*float64(h))
		points = append(points, models.ForecastPoint{
			Timestamp: last.Add(time.Duration(h) * step),
			Value:     v,
			Band:      [2]float64{v - half, v + half},
		})
	}

	return &models.ForecastSeries{
		EntityID: sm.EntityID,
		Channel:  sm.Channel,
		Model:    best.name,
		RSquared: best.rsq,
		Points:   points,
	}, nil
}

type polyFit struct {
	name   string
	coeffs []float64 // c0 + c1·x + c2·x²
	rsq    float64
	sigma  float64
}

func (f polyFit) eval(x float64) float64 {
	v, xp := 0.0, 1.0
	for _, c := range f.coeffs {
		v += c * xp
		xp *= x
	}
	return v
}

// fitPolynomial fits a degree-1 or degree-2 polynomial to y indexed by
// 0..len(y)-1 via least squares on the normal equations.
func fitPolynomial(y []float64, degree int) polyFit {
	n := len(y)
	m := degree + 1

	// Power sums Σx^k and moment sums Σx^k·y.
	pow := make([]float64, 2*m-1)
	mom := make([]float64, m)
	for i := 0; i < n; i++ {
		x := float64(i)
		xp := 1.0
		for k := 0; k < 2*m-1; k++ {
			pow[k] += xp
			if k < m {
				mom[k] += xp * y[i]
			}
			xp *= x
		}
	}

	// Assemble and solve the m×m system with Gaussian elimination.
	a := make([][]float64, m)
	for r := 0; r < m; r++ {
		a[r] = make([]float64, m+1)
		for c := 0; c < m; c++ {
			a[r][c] = pow[r+c]
		}
		a[r][m] = mom[r]
	}
	coeffs := solve(a)

	fit := polyFit{coeffs: coeffs}
	if degree == 1 {
		fit.name = "linear"
	} else {
		fit.name = "quadratic"
	}

	ybar := mom[0] / float64(n)
	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		pred := fit.eval(float64(i))
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - ybar) * (y[i] - ybar)
	}
	if ssTot > 0 {
		fit.rsq = 1 - ssRes/ssTot
	} else {
		fit.rsq = 1 // flat series fits itself perfectly
	}
	if n > m {
		fit.sigma = math.Sqrt(ssRes / float64(n-m))
	}
	return fit
}

// solve runs Gaussian elimination with partial pivoting on an augmented
// matrix and returns the solution vector.
func solve(a [][]float64) []float64 {
	m := len(a)
	for col := 0; col < m; col++ {
		pivot := col
		for r := col + 1; r < m; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		if math.Abs(a[col][col]) < 1e-12 {
			continue
		}
		for r := 0; r < m; r++ {
			if r == col {
				continue
			}
			factor := a[r][col] / a[col][col]
			for c := col; c <= m; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	x := make([]float64, m)
	for r := 0; r < m; r++ {
		if math.Abs(a[r][r]) >= 1e-12 {
			x[r] = a[r][m] / a[r][r]
		}
	}
	return x
}
