package serptrends

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// trendsPayload builds a TIMESERIES payload with weekly unix timestamps
// and the given value strings ("" means the values array is empty).
func trendsPayload(values []string) []byte {
	base := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	var items []string
	for i, v := range values {
		ts := base.AddDate(0, 0, 7*i).Unix()
		if v == "" {
			items = append(items, fmt.Sprintf(`{"date":"x","timestamp":"%d","values":[]}`, ts))
			continue
		}
		items = append(items, fmt.Sprintf(
			`{"date":"x","timestamp":"%d","values":[{"query":"acme","value":"%s","extracted_value":%s}]}`,
			ts, v, extractedFor(v)))
	}
	return []byte(`{"interest_over_time":{"timeline_data":[` + strings.Join(items, ",") + `]}}`)
}

func extractedFor(v string) string {
	switch v {
	case "<1":
		return `"<1"`
	case "-":
		return `""`
	default:
		return v
	}
}

func query() ingest.Query {
	return ingest.Query{EntityID: "acme", Channel: models.ChannelTrends, Country: "mx"}
}

// ════════════════════════════════════════════════════════════════════
// Normalize
// ════════════════════════════════════════════════════════════════════

func TestNormalizeTimeline(t *testing.T) {
	raw := trendsPayload([]string{"42", "57", "100"})

	res, err := New().Normalize(raw, query())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	s := res.Series
	if s == nil {
		t.Fatal("expected a time series result")
	}
	if s.EntityID != "acme" || s.Channel != models.ChannelTrends || s.Country != "mx" {
		t.Errorf("stamping: got %s/%s/%s", s.EntityID, s.Channel, s.Country)
	}
	if len(s.Points) != 3 {
		t.Fatalf("points: got %d, want 3", len(s.Points))
	}
	if s.Resolution != models.ResolutionWeekly {
		t.Errorf("resolution: got %s, want weekly", s.Resolution)
	}
	want := []float64{42, 57, 100}
	for i, p := range s.Points {
		if p.Value == nil || *p.Value != want[i] {
			t.Errorf("point %d: got %v, want %v", i, p.Value, want[i])
		}
	}
	if err := s.Validate(); err != nil {
		t.Errorf("canonical validation: %v", err)
	}
}

func TestNormalizeLowAndMissingMarkers(t *testing.T) {
	raw := trendsPayload([]string{"10", "<1", "-", ""})

	res, err := New().Normalize(raw, query())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	pts := res.Series.Points

	if pts[1].Value == nil || *pts[1].Value != 0.5 {
		t.Errorf("<1 marker: got %v, want 0.5", pts[1].Value)
	}
	if pts[2].Value != nil {
		t.Errorf("'-' marker should be a gap, got %v", *pts[2].Value)
	}
	if pts[3].Value != nil {
		t.Errorf("empty values array should be a gap, got %v", *pts[3].Value)
	}
}

func TestNormalizeDateRangeFallback(t *testing.T) {
	raw := []byte(`{"interest_over_time":{"timeline_data":[
		{"date":"Nov 24 – 30, 2024","values":[{"value":"12","extracted_value":12}]},
		{"date":"Dec 1 – 7, 2024","values":[{"value":"15","extracted_value":15}]}
	]}}`)

	res, err := New().Normalize(raw, query())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := time.Date(2024, 11, 24, 0, 0, 0, 0, time.UTC)
	if !res.Series.Points[0].Timestamp.Equal(want) {
		t.Errorf("range start: got %v, want %v", res.Series.Points[0].Timestamp, want)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"empty timeline", `{"interest_over_time":{"timeline_data":[]}}`},
		{"no timeline", `{"search_metadata":{}}`},
		{"garbage value", `{"interest_over_time":{"timeline_data":[
			{"date":"x","timestamp":"1736035200","values":[{"value":"banana","extracted_value":"banana"}]}
		]}}`},
		{"bad date", `{"interest_over_time":{"timeline_data":[
			{"date":"someday","values":[{"value":"1","extracted_value":1}]}
		]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Normalize([]byte(tt.raw), query())
			var mp *ingest.MalformedPayloadError
			if !errors.As(err, &mp) {
				t.Fatalf("expected MalformedPayloadError, got %v", err)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	info := New().Info()
	if info.ID != "serptrends" {
		t.Errorf("id: got %s", info.ID)
	}
	if info.Produces != ingest.PayloadTimeSeries {
		t.Errorf("produces: got %s", info.Produces)
	}
}
