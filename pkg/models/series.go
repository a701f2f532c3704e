// Package models defines the core data structures used throughout abra.
package models

import (
	"fmt"
	"time"
)

// Channel identifies a distinct attention data source.
type Channel string

const (
	ChannelWeb      Channel = "web"      // Google web organic
	ChannelNews     Channel = "news"     // news results / RSS
	ChannelShopping Channel = "shopping" // product listings
	ChannelVideo    Channel = "video"    // video results
	ChannelTrends   Channel = "trends"   // normalized interest-over-time
)

// AllChannels lists every channel the engine understands, in display order.
var AllChannels = []Channel{ChannelWeb, ChannelNews, ChannelShopping, ChannelVideo, ChannelTrends}

// Resolution is the sampling resolution of a time series.
type Resolution string

const (
	ResolutionDaily  Resolution = "daily"
	ResolutionWeekly Resolution = "weekly"
)

// Step returns the nominal sample spacing for the resolution.
func (r Resolution) Step() time.Duration {
	if r == ResolutionWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Point is a single observation. Value is nil for an explicit gap;
// gaps are kept in place because sample position matters for
// periodicity detection.
type Point struct {
	Timestamp time.Time `json:"t"`
	Value     *float64  `json:"value"` // null = no data
}

// TimeSeries is the canonical interest-over-time record produced by
// ingestion adapters. Timestamps are strictly increasing and the
// resolution is fixed for the whole series.
type TimeSeries struct {
	EntityID   string     `json:"entity_id"`
	Channel    Channel    `json:"channel"`
	Country    string     `json:"country,omitempty"`
	Resolution Resolution `json:"resolution"`
	Points     []Point    `json:"points"`
}

// Validate checks the series invariants: strictly increasing timestamps
// and values within [0,100] for normalized-interest channels (negative
// values are invalid on every channel).
func (ts *TimeSeries) Validate() error {
	for i, p := range ts.Points {
		if i > 0 && !p.Timestamp.After(ts.Points[i-1].Timestamp) {
			return fmt.Errorf("timestamps not strictly increasing at index %d", i)
		}
		if p.Value == nil {
			continue
		}
		if *p.Value < 0 {
			return fmt.Errorf("negative value %.2f at index %d", *p.Value, i)
		}
		if ts.Channel == ChannelTrends && *p.Value > 100 {
			return fmt.Errorf("normalized value %.2f out of [0,100] at index %d", *p.Value, i)
		}
	}
	return nil
}

// ObservedCount returns the number of non-gap points.
func (ts *TimeSeries) ObservedCount() int {
	n := 0
	for _, p := range ts.Points {
		if p.Value != nil {
			n++
		}
	}
	return n
}

// SmoothedSeries is a TimeSeries after gap interpolation and local
// regression smoothing. Same timestamps as the source, real-valued,
// immutable once produced.
type SmoothedSeries struct {
	EntityID   string      `json:"entity_id"`
	Channel    Channel     `json:"channel"`
	Resolution Resolution  `json:"resolution"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
	Incomplete bool        `json:"incomplete,omitempty"` // a gap run exceeded the configured maximum
}

// Last returns the most recent smoothed value, or 0 for an empty series.
func (s *SmoothedSeries) Last() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[len(s.Values)-1]
}

// Mean returns the arithmetic mean of the smoothed values.
func (s *SmoothedSeries) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// ForecastPoint is one predicted sample beyond the observed range.
type ForecastPoint struct {
	Timestamp time.Time  `json:"t"`
	Value     float64    `json:"value"`
	Band      [2]float64 `json:"band"` // [lo, hi] confidence band
}

// ForecastSeries is a short-horizon forecast extension of a smoothed
// series. Advisory only: it claims directional continuation of the
// recent local trend, nothing stronger.
type ForecastSeries struct {
	EntityID string          `json:"entity_id"`
	Channel  Channel         `json:"channel"`
	Model    string          `json:"model"` // "linear" or "quadratic", chosen by fit
	RSquared float64         `json:"r_squared"`
	Points   []ForecastPoint `json:"points"`
}

// SeasonalProfile describes a detected dominant cycle. A nil Period with
// zero Strength means no detectable periodicity, which is a legitimate
// terminal state rather than an error.
type SeasonalProfile struct {
	Period   *int    `json:"period"`   // cycle length in samples, null when none
	Strength float64 `json:"strength"` // autocorrelation of the dominant lag, [0,1]
	Peaks    []int   `json:"peaks"`    // sample offsets within one period where the cycle crests
}

// HasSeasonality reports whether a dominant period was detected.
func (p SeasonalProfile) HasSeasonality() bool {
	return p.Period != nil && p.Strength > 0
}

// ChangeStats summarizes recent movement of a series, computed on the
// raw observed values at weekly-ish offsets.
type ChangeStats struct {
	MonthChange   float64 `json:"month_change_pct"`
	QuarterChange float64 `json:"quarter_change_pct"`
	YearChange    float64 `json:"year_change_pct"`
	Mean          float64 `json:"mean"`
}
