package models

import "time"

// ChannelStatus is the per-channel completeness flag on an InsightRecord.
type ChannelStatus string

const (
	StatusOK         ChannelStatus = "ok"
	StatusIncomplete ChannelStatus = "incomplete"
	StatusMissing    ChannelStatus = "missing"
)

// Anomaly flags a statistically significant spike in one sub-entity's
// series (a "star product" when the sub-entity is a SKU under a brand).
type Anomaly struct {
	SubEntityID string  `json:"sub_entity_id"`
	SpikeIndex  int     `json:"index"`
	Magnitude   float64 `json:"magnitude"` // std-devs above the rolling baseline
	Window      int     `json:"window"`
	Value       float64 `json:"value"`
	Baseline    float64 `json:"baseline"`
}

// GrowthTier classifies an anomaly by how far it sits above baseline,
// mirroring the breakout/rising/growing tiers of the product radar.
type GrowthTier string

const (
	TierBreakout GrowthTier = "breakout" // ≥200% above baseline
	TierRising   GrowthTier = "rising"   // ≥100%
	TierGrowing  GrowthTier = "growing"
)

// Tier returns the growth tier for the anomaly's jump over baseline.
func (a Anomaly) Tier() GrowthTier {
	if a.Baseline <= 0 {
		return TierBreakout
	}
	growth := (a.Value - a.Baseline) / a.Baseline * 100
	switch {
	case growth >= 200:
		return TierBreakout
	case growth >= 100:
		return TierRising
	default:
		return TierGrowing
	}
}

// RiskLevel buckets log-return volatility.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// MonthlyProfile is the calendar-month view of a series: average
// interest per month and a 0-100 score for how unevenly interest is
// spread across the year.
type MonthlyProfile struct {
	Months  map[string]float64 `json:"monthly_avg"`
	Overall float64            `json:"overall_avg"`
	Score   float64            `json:"seasonality_score"`
}

// TrendSummary bundles the smoothed curve, forecast and seasonality for
// one entity's dominant time-series channel.
type TrendSummary struct {
	Smoothed    []float64       `json:"smoothed"`
	Forecast    []ForecastPoint `json:"forecast"`
	Seasonality SeasonalProfile `json:"seasonality"`
	Monthly     *MonthlyProfile `json:"monthly,omitempty"` // nil when the series covers a single month
	Changes     *ChangeStats    `json:"changes,omitempty"`
	Volatility  float64         `json:"volatility,omitempty"`
	Risk        RiskLevel       `json:"risk,omitempty"`
}

// DominantChannel identifies the channel carrying the largest share of
// cross-channel attention volume.
type DominantChannel struct {
	Channel Channel `json:"channel"`
	Share   float64 `json:"share_pct"` // percent of total channel volume
}

// ObservationSeverity grades a cross-channel observation.
type ObservationSeverity string

const (
	SeverityInfo    ObservationSeverity = "info"
	SeveritySuccess ObservationSeverity = "success"
	SeverityWarning ObservationSeverity = "warning"
)

// Observation is a human-readable cross-channel finding (dominance,
// concentration, growth, opportunity).
type Observation struct {
	Type        string              `json:"type"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Severity    ObservationSeverity `json:"severity"`
}

// AlertKind distinguishes interest spikes from drops.
type AlertKind string

const (
	AlertSpike AlertKind = "spike"
	AlertDrop  AlertKind = "drop"
)

// Alert is raised when a channel's month-over-month change crosses the
// configured spike/drop thresholds.
type Alert struct {
	Channel   Channel   `json:"channel"`
	Kind      AlertKind `json:"kind"`
	ChangePct float64   `json:"change_pct"`
}

// InsightRecord is the fused, comparable brand-intelligence signal for
// one entity. It is created fresh per analysis run and never mutated.
// Failure is observable only through Completeness flags and null fields.
type InsightRecord struct {
	RunID         string                    `json:"run_id"`
	EntityID      string                    `json:"entity_id"`
	GeneratedAt   time.Time                 `json:"generated_at"`
	OverallScore  *float64                  `json:"overall_score"` // null when no channel was usable
	ChannelScores map[Channel]float64       `json:"channel_scores"`
	Trend         TrendSummary              `json:"trend"`
	StarProducts  []Anomaly                 `json:"star_products"`
	Completeness  map[Channel]ChannelStatus `json:"completeness_flags"`
	Dominant      *DominantChannel          `json:"dominant_channel,omitempty"`
	Observations  []Observation             `json:"observations"`
	Alerts        []Alert                   `json:"alerts"`
}

// Usable reports whether at least one channel produced a score.
func (r *InsightRecord) Usable() bool {
	return r.OverallScore != nil
}

// EntityProfile describes the entity under analysis: its canonical name
// and the category keywords used for relevance scoring.
type EntityProfile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
	Country  string   `json:"country,omitempty"`
}
