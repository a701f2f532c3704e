package insight

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abralabs/abra/internal/analysis/relevance"
	"github.com/abralabs/abra/internal/analysis/trend"
	"github.com/abralabs/abra/pkg/models"
)

const (
	momentumFloor = 0.5
	momentumCeil  = 1.5

	// Cross-channel observation thresholds, in percent.
	concentrationPct = 60
	opportunityPct   = 15
	growthPct        = 10
)

// fuse folds the per-channel analytics into one InsightRecord. It is a
// pure function of its inputs apart from the generated run id.
func fuse(profile models.EntityProfile, analytics map[models.Channel]*ChannelAnalytics, stars []models.Anomaly, opts Options, now time.Time) *models.InsightRecord {
	if stars == nil {
		stars = []models.Anomaly{}
	}
	record := &models.InsightRecord{
		RunID:         uuid.NewString(),
		EntityID:      profile.ID,
		GeneratedAt:   now,
		ChannelScores: make(map[models.Channel]float64),
		Completeness:  make(map[models.Channel]models.ChannelStatus, len(models.AllChannels)),
		StarProducts:  stars,
	}

	for _, ch := range models.AllChannels {
		if ca, ok := analytics[ch]; ok {
			record.Completeness[ch] = ca.Status
		} else {
			record.Completeness[ch] = models.StatusMissing
		}
	}

	// Per-channel scores over the usable channels only.
	var weighted, weightSum float64
	for _, ch := range sortedChannels(analytics) {
		score, ok := channelScore(analytics[ch], opts)
		if !ok {
			continue
		}
		record.ChannelScores[ch] = round1(score)

		w, has := opts.Fusion.ChannelWeights[ch]
		if !has {
			w = 1
		}
		weighted += w * score
		weightSum += w
	}
	if weightSum > 0 {
		overall := round1(weighted / weightSum)
		record.OverallScore = &overall
	}

	record.Trend = trendSummary(analytics)
	record.Dominant = dominantChannel(analytics, record.ChannelScores)
	record.Observations = observations(analytics, record)
	record.Alerts = alerts(analytics, opts.Fusion)

	return record
}

// channelScore derives one channel's [0,100] score. The relevance of
// the channel's results carries the base; when a trend curve exists its
// momentum scales the base up or down by at most the configured blend.
// A channel with neither signal is unusable.
func channelScore(ca *ChannelAnalytics, opts Options) (float64, bool) {
	if ca == nil || ca.Status == models.StatusMissing {
		return 0, false
	}

	hasRel := len(ca.Relevance) > 0
	hasTrend := ca.Smoothed != nil && len(ca.Smoothed.Values) > 0

	switch {
	case hasRel && hasTrend:
		base := relevance.TopKMean(ca.Relevance, opts.Relevance.TopK) * 100
		b := opts.Fusion.TrendBlend
		return clamp(base*((1-b)+b*momentum(ca.Smoothed)), 0, 100), true
	case hasRel:
		return clamp(relevance.TopKMean(ca.Relevance, opts.Relevance.TopK)*100, 0, 100), true
	case hasTrend:
		// Momentum alone, mapped so a flat series lands on 50.
		return clamp((momentum(ca.Smoothed)-momentumFloor)*100, 0, 100), true
	default:
		return 0, false
	}
}

// momentum is the latest smoothed value relative to the series mean,
// clipped so a single hot week cannot dominate the fused score.
func momentum(sm *models.SmoothedSeries) float64 {
	mean := sm.Mean()
	if mean <= 0 {
		return 1
	}
	return clamp(sm.Last()/mean, momentumFloor, momentumCeil)
}

// trendSummary picks the entity's dominant time-series channel,
// preferring normalized interest, and surfaces its curve.
func trendSummary(analytics map[models.Channel]*ChannelAnalytics) models.TrendSummary {
	var src *ChannelAnalytics
	if ca, ok := analytics[models.ChannelTrends]; ok && ca.Smoothed != nil {
		src = ca
	} else {
		for _, ch := range sortedChannels(analytics) {
			if ca := analytics[ch]; ca.Smoothed != nil {
				src = ca
				break
			}
		}
	}
	if src == nil {
		return models.TrendSummary{}
	}

	summary := models.TrendSummary{
		Smoothed:   src.Smoothed.Values,
		Monthly:    src.Monthly,
		Changes:    src.Changes,
		Volatility: src.Volatility,
		Risk:       trend.RiskFor(src.Volatility),
	}
	if src.Forecast != nil {
		summary.Forecast = src.Forecast.Points
	}
	if src.Seasonality != nil {
		summary.Seasonality = *src.Seasonality
	}
	return summary
}

// dominantChannel reports which channel carries the largest share of
// attention volume. Channels with trend data contribute their observed
// mean; search-only channels contribute their score as a proxy.
func dominantChannel(analytics map[models.Channel]*ChannelAnalytics, scores map[models.Channel]float64) *models.DominantChannel {
	volumes := make(map[models.Channel]float64)
	var total float64
	for ch, ca := range analytics {
		var vol float64
		switch {
		case ca.Changes != nil:
			vol = ca.Changes.Mean
		default:
			vol = scores[ch]
		}
		if vol <= 0 {
			continue
		}
		volumes[ch] = vol
		total += vol
	}
	if total <= 0 {
		return nil
	}

	var best models.Channel
	var bestVol float64
	for _, ch := range models.AllChannels {
		if v, ok := volumes[ch]; ok && v > bestVol {
			best, bestVol = ch, v
		}
	}
	return &models.DominantChannel{
		Channel: best,
		Share:   round1(bestVol / total * 100),
	}
}

// observations derives the human-readable cross-channel findings shown
// alongside the numeric record.
func observations(analytics map[models.Channel]*ChannelAnalytics, record *models.InsightRecord) []models.Observation {
	obs := []models.Observation{}

	if d := record.Dominant; d != nil {
		obs = append(obs, models.Observation{
			Type:        "dominance",
			Title:       fmt.Sprintf("%s drives the most attention", d.Channel),
			Description: fmt.Sprintf("%s carries %.1f%% of cross-channel volume", d.Channel, d.Share),
			Severity:    models.SeverityInfo,
		})
		switch {
		case d.Share > concentrationPct:
			obs = append(obs, models.Observation{
				Type:        "concentration",
				Title:       "Attention is concentrated in one channel",
				Description: fmt.Sprintf("over %d%% of volume sits on %s; a shift there moves the whole signal", concentrationPct, d.Channel),
				Severity:    models.SeverityWarning,
			})
		case len(record.ChannelScores) >= 3:
			obs = append(obs, models.Observation{
				Type:        "balance",
				Title:       "Attention is spread across channels",
				Description: "no single channel dominates the signal",
				Severity:    models.SeveritySuccess,
			})
		}
	}

	// Strongest month-over-month mover.
	var growthCh models.Channel
	var growth float64
	for _, ch := range sortedChannels(analytics) {
		if c := analytics[ch].Changes; c != nil && c.MonthChange > growth {
			growthCh, growth = ch, c.MonthChange
		}
	}
	if growth > growthPct {
		obs = append(obs, models.Observation{
			Type:        "growth",
			Title:       fmt.Sprintf("Momentum building on %s", growthCh),
			Description: fmt.Sprintf("%s interest is up %.1f%% over the last month", growthCh, growth),
			Severity:    models.SeveritySuccess,
		})
	}

	// Under-served channels are expansion candidates.
	if d := record.Dominant; d != nil {
		var low []string
		for _, ch := range sortedChannels(analytics) {
			score, ok := record.ChannelScores[ch]
			if !ok || ch == d.Channel {
				continue
			}
			if share := shareOf(score, record.ChannelScores); share > 0 && share < opportunityPct {
				low = append(low, string(ch))
			}
		}
		if len(low) > 0 {
			obs = append(obs, models.Observation{
				Type:        "opportunity",
				Title:       "Under-served channels",
				Description: fmt.Sprintf("low presence on %s relative to the rest", strings.Join(low, ", ")),
				Severity:    models.SeverityInfo,
			})
		}
	}

	return obs
}

func shareOf(score float64, scores map[models.Channel]float64) float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	if total <= 0 {
		return 0
	}
	return score / total * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
