package insight

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abralabs/abra/internal/infra"
	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/internal/ingest/providers"
	"github.com/abralabs/abra/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

var engineNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T) *ingest.Registry {
	t.Helper()
	reg := ingest.NewRegistry()
	if err := providers.RegisterAllTo(reg); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}
	return reg
}

func testEngine(t *testing.T, cache infra.Cache) *Engine {
	t.Helper()
	return New(testRegistry(t), DefaultOptions(), cache)
}

// trendsJSON builds a SerpAPI-shaped interest payload over weekly
// samples with the given values.
func trendsJSON(values []float64) []byte {
	base := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	var items []string
	for i, v := range values {
		items = append(items, fmt.Sprintf(
			`{"date":"w%d","timestamp":"%d","values":[{"value":"%g","extracted_value":%g}]}`,
			i, base.AddDate(0, 0, 7*i).Unix(), v, v))
	}
	return []byte(`{"interest_over_time":{"timeline_data":[` + strings.Join(items, ",") + `]}}`)
}

func webJSON() []byte {
	return []byte(`{
		"search_metadata": {"created_at": "2026-05-30 10:00:00 UTC"},
		"organic_results": [
			{"position": 1, "title": "Acme Cola official site", "link": "https://acme.example", "snippet": "soda"},
			{"position": 2, "title": "Acme Cola review", "link": "https://r.example/acme", "snippet": "tasted"}
		]
	}`)
}

func risingValues(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 20 + float64(i)
	}
	return out
}

func entityInput() EntityInput {
	return EntityInput{
		Profile: models.EntityProfile{ID: "acme", Name: "Acme Cola", Keywords: []string{"soda"}},
		Channels: []ChannelPayload{
			{Provider: "serptrends", Channel: models.ChannelTrends, Payload: trendsJSON(risingValues(60))},
			{Provider: "serpsearch", Channel: models.ChannelWeb, Payload: webJSON()},
		},
		Now: engineNow,
	}
}

// ════════════════════════════════════════════════════════════════════
// AnalyzeEntity
// ════════════════════════════════════════════════════════════════════

func TestAnalyzeEntityEndToEnd(t *testing.T) {
	rec, err := testEngine(t, nil).AnalyzeEntity(context.Background(), entityInput())
	if err != nil {
		t.Fatalf("AnalyzeEntity: %v", err)
	}

	if rec.EntityID != "acme" || rec.RunID == "" {
		t.Errorf("stamping: got %s / %q", rec.EntityID, rec.RunID)
	}
	if !rec.GeneratedAt.Equal(engineNow) {
		t.Errorf("GeneratedAt: got %v, want pinned clock", rec.GeneratedAt)
	}
	if rec.OverallScore == nil {
		t.Fatal("expected an overall score")
	}
	if rec.Completeness[models.ChannelTrends] != models.StatusOK {
		t.Errorf("trends flag: got %s", rec.Completeness[models.ChannelTrends])
	}
	if rec.Completeness[models.ChannelWeb] != models.StatusOK {
		t.Errorf("web flag: got %s", rec.Completeness[models.ChannelWeb])
	}
	if len(rec.Trend.Smoothed) != 60 {
		t.Errorf("smoothed length: got %d, want 60", len(rec.Trend.Smoothed))
	}
	if len(rec.Trend.Forecast) == 0 {
		t.Error("expected forecast points")
	}
}

func TestAnalyzeEntityMonthlyProfile(t *testing.T) {
	rec, err := testEngine(t, nil).AnalyzeEntity(context.Background(), entityInput())
	if err != nil {
		t.Fatalf("AnalyzeEntity: %v", err)
	}
	if rec.Trend.Monthly == nil {
		t.Fatal("expected a calendar profile for a series spanning months")
	}
	if len(rec.Trend.Monthly.Months) != 12 {
		t.Errorf("months covered: got %d, want 12", len(rec.Trend.Monthly.Months))
	}
	if rec.Trend.Monthly.Overall <= 0 {
		t.Errorf("overall average: got %v, want positive", rec.Trend.Monthly.Overall)
	}
}

func TestAnalyzeChannelTagsResultKinds(t *testing.T) {
	payload := []byte(`{
		"search_metadata": {"created_at": "2026-05-30 10:00:00 UTC"},
		"organic_results": [
			{"position": 1, "title": "What is Acme Cola made of", "link": "https://q.example"},
			{"position": 2, "title": "Acme Cola nutrition facts", "link": "https://a.example"}
		]
	}`)

	in := entityInput()
	cp := ChannelPayload{Provider: "serpsearch", Channel: models.ChannelWeb, Payload: payload}
	ca := testEngine(t, nil).analyzeChannel(context.Background(), in, cp, engineNow)

	if ca.Status != models.StatusOK {
		t.Fatalf("status: got %s, want ok", ca.Status)
	}
	if len(ca.Relevance) != 2 {
		t.Fatalf("relevance: got %d scores, want 2", len(ca.Relevance))
	}
	if ca.Relevance[0].Kind != models.KindQuestion {
		t.Errorf("question title: got kind %s", ca.Relevance[0].Kind)
	}
	if ca.Relevance[1].Kind != models.KindAttribute {
		t.Errorf("attribute title: got kind %s", ca.Relevance[1].Kind)
	}
}

func TestAnalyzeEntityMalformedChannelDegrades(t *testing.T) {
	in := entityInput()
	in.Channels = append(in.Channels, ChannelPayload{
		Provider: "serpsearch", Channel: models.ChannelNews, Payload: []byte(`not json at all`),
	})

	rec, err := testEngine(t, nil).AnalyzeEntity(context.Background(), in)
	if err != nil {
		t.Fatalf("a malformed payload must not fail the entity: %v", err)
	}
	if rec.Completeness[models.ChannelNews] != models.StatusMissing {
		t.Errorf("news flag: got %s, want missing", rec.Completeness[models.ChannelNews])
	}
	if rec.Completeness[models.ChannelTrends] != models.StatusOK {
		t.Error("sibling channels must be unaffected")
	}
	if rec.OverallScore == nil {
		t.Error("overall score should still come from the usable channels")
	}
}

func TestAnalyzeEntityShortHistoryIncomplete(t *testing.T) {
	in := EntityInput{
		Profile: models.EntityProfile{ID: "acme"},
		Channels: []ChannelPayload{
			{Provider: "serptrends", Channel: models.ChannelTrends, Payload: trendsJSON(risingValues(5))},
		},
		Now: engineNow,
	}

	rec, err := testEngine(t, nil).AnalyzeEntity(context.Background(), in)
	if err != nil {
		t.Fatalf("AnalyzeEntity: %v", err)
	}
	if rec.Completeness[models.ChannelTrends] != models.StatusIncomplete {
		t.Errorf("trends flag: got %s, want incomplete", rec.Completeness[models.ChannelTrends])
	}
	if rec.OverallScore != nil {
		t.Errorf("no usable channel, overall should be nil, got %v", *rec.OverallScore)
	}
}

func TestAnalyzeEntityIdempotent(t *testing.T) {
	e := testEngine(t, nil)

	a, err := e.AnalyzeEntity(context.Background(), entityInput())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := e.AnalyzeEntity(context.Background(), entityInput())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	a.RunID, b.RunID = "", ""
	if !reflect.DeepEqual(a, b) {
		t.Error("same input produced different records across runs")
	}
}

func TestAnalyzeEntityCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testEngine(t, nil).AnalyzeEntity(ctx, entityInput()); err == nil {
		t.Fatal("expected a context error")
	}
}

// ════════════════════════════════════════════════════════════════════
// Star products
// ════════════════════════════════════════════════════════════════════

func TestAnalyzeEntityStarProducts(t *testing.T) {
	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 10
	}
	spiky := make([]float64, 40)
	copy(spiky, flat)
	spiky[30] = 100

	in := entityInput()
	in.SubEntities = []SubEntityPayload{
		{SubEntityID: "sku-1", Provider: "serptrends", Payload: trendsJSON(spiky)},
		{SubEntityID: "sku-2", Provider: "serptrends", Payload: trendsJSON(flat)},
		{SubEntityID: "sku-broken", Provider: "serptrends", Payload: []byte(`{{`)},
	}

	rec, err := testEngine(t, nil).AnalyzeEntity(context.Background(), in)
	if err != nil {
		t.Fatalf("AnalyzeEntity: %v", err)
	}
	// Smoothing spreads the jump, so count only clear excursions.
	var meaningful int
	for _, a := range rec.StarProducts {
		if a.Value-a.Baseline < 1 {
			continue
		}
		meaningful++
		if a.SubEntityID != "sku-1" {
			t.Errorf("unexpected star %s", a.SubEntityID)
		}
	}
	if meaningful == 0 {
		t.Fatal("expected the spiking sub-entity to be flagged")
	}
}

// ════════════════════════════════════════════════════════════════════
// Batch, cache, progress
// ════════════════════════════════════════════════════════════════════

func TestAnalyzeBatchPreservesOrder(t *testing.T) {
	first := entityInput()
	second := entityInput()
	second.Profile.ID = "rival"

	records, err := testEngine(t, nil).AnalyzeBatch(context.Background(), []EntityInput{first, second})
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].EntityID != "acme" || records[1].EntityID != "rival" {
		t.Errorf("order: got %s, %s", records[0].EntityID, records[1].EntityID)
	}
}

func TestEngineUsesCache(t *testing.T) {
	cache := infra.NewMemoryCache(time.Minute)
	e := testEngine(t, cache)

	var mu sync.Mutex
	var stages []string
	e.OnProgress(func(ev ProgressEvent) {
		mu.Lock()
		stages = append(stages, ev.Stage)
		mu.Unlock()
	})

	in := entityInput()
	for i := range in.Channels {
		in.Channels[i].DateRange = "2025-01..2026-06"
	}

	if _, err := e.AnalyzeEntity(context.Background(), in); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if cache.Len() == 0 {
		t.Fatal("first run should have populated the cache")
	}

	second, err := e.AnalyzeEntity(context.Background(), in)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.OverallScore == nil {
		t.Fatal("cached run lost the score")
	}

	mu.Lock()
	defer mu.Unlock()
	var hits int
	for _, s := range stages {
		if s == "cached" {
			hits++
		}
	}
	if hits == 0 {
		t.Error("second run should have hit the cache")
	}
}

func TestCompareRanksEntities(t *testing.T) {
	strong := entityInput()
	weak := EntityInput{
		Profile: models.EntityProfile{ID: "rival", Name: "Rival Soda"},
		Channels: []ChannelPayload{
			{Provider: "serpsearch", Channel: models.ChannelWeb, Payload: []byte(`{
				"organic_results": [{"position": 1, "title": "unrelated page", "link": "https://x.example"}]
			}`)},
		},
		Now: engineNow,
	}

	cmp, err := testEngine(t, nil).Compare(context.Background(), []EntityInput{strong, weak})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(cmp.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(cmp.Records))
	}
	if cmp.Leader != "acme" {
		t.Errorf("leader: got %s, want acme", cmp.Leader)
	}
	if cmp.RunID == "" {
		t.Error("comparison should carry a run id")
	}
}
