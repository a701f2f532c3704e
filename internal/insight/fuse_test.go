package insight

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/abralabs/abra/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

var fuseNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func fuseProfile() models.EntityProfile {
	return models.EntityProfile{ID: "acme", Name: "Acme Cola"}
}

// relChannel builds an ok channel whose score comes from relevance only.
func relChannel(ch models.Channel, score float64) *ChannelAnalytics {
	return &ChannelAnalytics{
		Channel:   ch,
		Status:    models.StatusOK,
		Relevance: []models.RelevanceScore{{Score: score}},
	}
}

func smoothedValues(ch models.Channel, values []float64) *models.SmoothedSeries {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, len(values))
	for i := range values {
		timestamps[i] = base.AddDate(0, 0, 7*i)
	}
	return &models.SmoothedSeries{
		EntityID: "acme", Channel: ch,
		Resolution: models.ResolutionWeekly,
		Timestamps: timestamps, Values: values,
	}
}

// ════════════════════════════════════════════════════════════════════
// Score fusion
// ════════════════════════════════════════════════════════════════════

func TestFuseEqualWeights(t *testing.T) {
	analytics := map[models.Channel]*ChannelAnalytics{
		models.ChannelWeb:  relChannel(models.ChannelWeb, 0.8),
		models.ChannelNews: relChannel(models.ChannelNews, 0.6),
	}

	rec := fuse(fuseProfile(), analytics, nil, DefaultOptions(), fuseNow)
	if rec.OverallScore == nil {
		t.Fatal("expected an overall score")
	}
	if *rec.OverallScore != 70 {
		t.Errorf("overall: got %v, want 70", *rec.OverallScore)
	}
	if rec.ChannelScores[models.ChannelWeb] != 80 || rec.ChannelScores[models.ChannelNews] != 60 {
		t.Errorf("channel scores: got %v", rec.ChannelScores)
	}
}

func TestFuseMissingChannelExcludedFromOverall(t *testing.T) {
	analytics := map[models.Channel]*ChannelAnalytics{
		models.ChannelWeb:  relChannel(models.ChannelWeb, 0.8),
		models.ChannelNews: {Channel: models.ChannelNews, Status: models.StatusMissing},
	}

	rec := fuse(fuseProfile(), analytics, nil, DefaultOptions(), fuseNow)
	if rec.OverallScore == nil || *rec.OverallScore != 80 {
		t.Fatalf("overall: got %v, want 80", rec.OverallScore)
	}
	if _, scored := rec.ChannelScores[models.ChannelNews]; scored {
		t.Error("missing channel must not receive a score")
	}
	if rec.Completeness[models.ChannelNews] != models.StatusMissing {
		t.Errorf("news flag: got %s", rec.Completeness[models.ChannelNews])
	}
	if rec.Completeness[models.ChannelShopping] != models.StatusMissing {
		t.Error("channels absent from the input must be flagged missing")
	}
}

func TestFuseNoUsableChannels(t *testing.T) {
	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{}, nil, DefaultOptions(), fuseNow)
	if rec.OverallScore != nil {
		t.Errorf("overall: got %v, want nil", *rec.OverallScore)
	}
	if rec.Usable() {
		t.Error("record with no channels must not be usable")
	}
	for ch, status := range rec.Completeness {
		if status != models.StatusMissing {
			t.Errorf("channel %s: got %s, want missing", ch, status)
		}
	}
}

func TestFuseChannelWeights(t *testing.T) {
	analytics := map[models.Channel]*ChannelAnalytics{
		models.ChannelWeb:  relChannel(models.ChannelWeb, 0.8),
		models.ChannelNews: relChannel(models.ChannelNews, 0.6),
	}

	opts := DefaultOptions()
	opts.Fusion.ChannelWeights = map[models.Channel]float64{
		models.ChannelWeb:  3,
		models.ChannelNews: 1,
	}

	rec := fuse(fuseProfile(), analytics, nil, opts, fuseNow)
	// (3·80 + 1·60) / 4 = 75
	if rec.OverallScore == nil || *rec.OverallScore != 75 {
		t.Fatalf("weighted overall: got %v, want 75", rec.OverallScore)
	}
}

func TestFuseMomentumBlend(t *testing.T) {
	ca := relChannel(models.ChannelWeb, 0.8)
	// last=30, mean=20, momentum 1.5 (at the clip ceiling).
	ca.Smoothed = smoothedValues(models.ChannelWeb, []float64{10, 20, 30})

	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{models.ChannelWeb: ca},
		nil, DefaultOptions(), fuseNow)

	// 80 · (0.7 + 0.3·1.5) = 92
	if got := rec.ChannelScores[models.ChannelWeb]; math.Abs(got-92) > 1e-9 {
		t.Errorf("blended score: got %v, want 92", got)
	}
}

func TestFuseTrendOnlyChannel(t *testing.T) {
	ca := &ChannelAnalytics{
		Channel:  models.ChannelTrends,
		Status:   models.StatusOK,
		Smoothed: smoothedValues(models.ChannelTrends, []float64{50, 50, 50, 50}),
	}

	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{models.ChannelTrends: ca},
		nil, DefaultOptions(), fuseNow)

	// A flat series has momentum 1, which maps to a neutral 50.
	if got := rec.ChannelScores[models.ChannelTrends]; math.Abs(got-50) > 1e-9 {
		t.Errorf("trend-only score: got %v, want 50", got)
	}
}

func TestFuseIdempotent(t *testing.T) {
	ca := relChannel(models.ChannelWeb, 0.7)
	ca.Smoothed = smoothedValues(models.ChannelWeb, []float64{10, 12, 14, 16})
	analytics := map[models.Channel]*ChannelAnalytics{models.ChannelWeb: ca}

	a := fuse(fuseProfile(), analytics, nil, DefaultOptions(), fuseNow)
	b := fuse(fuseProfile(), analytics, nil, DefaultOptions(), fuseNow)
	a.RunID, b.RunID = "", ""
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same inputs produced different records:\n%+v\n%+v", a, b)
	}
}

// ════════════════════════════════════════════════════════════════════
// Trend summary, dominance, alerts
// ════════════════════════════════════════════════════════════════════

func TestFusePrefersTrendsChannelForSummary(t *testing.T) {
	web := relChannel(models.ChannelWeb, 0.5)
	web.Smoothed = smoothedValues(models.ChannelWeb, []float64{1, 2, 3})

	trends := &ChannelAnalytics{
		Channel:  models.ChannelTrends,
		Status:   models.StatusOK,
		Smoothed: smoothedValues(models.ChannelTrends, []float64{40, 50, 60}),
	}

	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{
		models.ChannelWeb:    web,
		models.ChannelTrends: trends,
	}, nil, DefaultOptions(), fuseNow)

	if len(rec.Trend.Smoothed) == 0 || rec.Trend.Smoothed[0] != 40 {
		t.Errorf("trend summary should come from the trends channel: %v", rec.Trend.Smoothed)
	}
}

func TestFuseDominantChannel(t *testing.T) {
	web := relChannel(models.ChannelWeb, 0.5)
	web.Changes = &models.ChangeStats{Mean: 80}
	news := relChannel(models.ChannelNews, 0.5)
	news.Changes = &models.ChangeStats{Mean: 20}

	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{
		models.ChannelWeb:  web,
		models.ChannelNews: news,
	}, nil, DefaultOptions(), fuseNow)

	if rec.Dominant == nil {
		t.Fatal("expected a dominant channel")
	}
	if rec.Dominant.Channel != models.ChannelWeb {
		t.Errorf("dominant: got %s, want web", rec.Dominant.Channel)
	}
	if rec.Dominant.Share != 80 {
		t.Errorf("share: got %v, want 80", rec.Dominant.Share)
	}

	var sawConcentration bool
	for _, o := range rec.Observations {
		if o.Type == "concentration" {
			sawConcentration = true
		}
	}
	if !sawConcentration {
		t.Error("80% share should raise a concentration observation")
	}
}

func TestFuseAlerts(t *testing.T) {
	spiking := relChannel(models.ChannelWeb, 0.5)
	spiking.Changes = &models.ChangeStats{MonthChange: 45}
	dropping := relChannel(models.ChannelNews, 0.5)
	dropping.Changes = &models.ChangeStats{MonthChange: -25}
	steady := relChannel(models.ChannelVideo, 0.5)
	steady.Changes = &models.ChangeStats{MonthChange: 5}

	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{
		models.ChannelWeb:   spiking,
		models.ChannelNews:  dropping,
		models.ChannelVideo: steady,
	}, nil, DefaultOptions(), fuseNow)

	if len(rec.Alerts) != 2 {
		t.Fatalf("alerts: got %d, want 2: %+v", len(rec.Alerts), rec.Alerts)
	}
	kinds := map[models.Channel]models.AlertKind{}
	for _, a := range rec.Alerts {
		kinds[a.Channel] = a.Kind
	}
	if kinds[models.ChannelWeb] != models.AlertSpike {
		t.Errorf("web alert: got %s, want spike", kinds[models.ChannelWeb])
	}
	if kinds[models.ChannelNews] != models.AlertDrop {
		t.Errorf("news alert: got %s, want drop", kinds[models.ChannelNews])
	}
}

func TestFuseStarProductsCarriedThrough(t *testing.T) {
	stars := []models.Anomaly{{SubEntityID: "sku-1", SpikeIndex: 7, Magnitude: 3.2}}
	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{
		models.ChannelWeb: relChannel(models.ChannelWeb, 0.5),
	}, stars, DefaultOptions(), fuseNow)

	if len(rec.StarProducts) != 1 || rec.StarProducts[0].SubEntityID != "sku-1" {
		t.Errorf("star products: got %+v", rec.StarProducts)
	}
}

func TestFuseEmptyCollectionsMarshalAsArrays(t *testing.T) {
	rec := fuse(fuseProfile(), map[models.Channel]*ChannelAnalytics{}, nil, DefaultOptions(), fuseNow)

	if rec.StarProducts == nil || rec.Observations == nil || rec.Alerts == nil {
		t.Fatalf("collections must never be nil: %+v", rec)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"star_products":[]`, `"observations":[]`, `"alerts":[]`} {
		if !strings.Contains(string(payload), want) {
			t.Errorf("record JSON missing %s:\n%s", want, payload)
		}
	}
}
