// Package serptrends normalizes SerpAPI Google Trends TIMESERIES
// payloads into canonical TimeSeries records.
package serptrends

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/pkg/models"
)

const providerID = "serptrends"

// payload mirrors the slice of the SerpAPI response the adapter reads.
type payload struct {
	InterestOverTime struct {
		TimelineData []timelineItem `json:"timeline_data"`
	} `json:"interest_over_time"`
}

type timelineItem struct {
	Date      string `json:"date"`
	Timestamp string `json:"timestamp"` // unix seconds, as a string
	Values    []struct {
		Value          string          `json:"value"`
		ExtractedValue json.RawMessage `json:"extracted_value"`
	} `json:"values"`
}

// Adapter parses interest-over-time payloads.
type Adapter struct{}

// New creates the trends adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Info() ingest.AdapterInfo {
	return ingest.AdapterInfo{
		ID:          providerID,
		Description: "SerpAPI Google Trends interest-over-time payloads",
		Produces:    ingest.PayloadTimeSeries,
		Channels:    []models.Channel{models.ChannelTrends},
	}
}

// Normalize converts a TIMESERIES payload into a TimeSeries. Points
// whose value is absent or an explicit no-data marker become nil gaps;
// a value that is neither numeric nor a no-data marker is a schema
// violation.
func (a *Adapter) Normalize(raw []byte, q ingest.Query) (*ingest.Result, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ingest.MalformedPayloadError{Provider: providerID, Detail: err.Error()}
	}

	items := p.InterestOverTime.TimelineData
	if len(items) == 0 {
		return nil, &ingest.MalformedPayloadError{
			Provider: providerID,
			Field:    "interest_over_time.timeline_data",
			Detail:   "missing or empty",
		}
	}

	points := make([]models.Point, 0, len(items))
	for i, item := range items {
		ts, err := parseItemTime(item)
		if err != nil {
			return nil, &ingest.MalformedPayloadError{
				Provider: providerID,
				Field:    "timeline_data[" + strconv.Itoa(i) + "].date",
				Detail:   err.Error(),
			}
		}

		if len(item.Values) == 0 {
			points = append(points, models.Point{Timestamp: ts})
			continue
		}

		v, ok, err := parseValue(item.Values[0].ExtractedValue, item.Values[0].Value)
		if err != nil {
			return nil, &ingest.MalformedPayloadError{
				Provider: providerID,
				Field:    "timeline_data[" + strconv.Itoa(i) + "].values",
				Detail:   err.Error(),
			}
		}
		pt := models.Point{Timestamp: ts}
		if ok {
			val := v
			pt.Value = &val
		}
		points = append(points, pt)
	}

	series := &models.TimeSeries{
		EntityID:   q.EntityID,
		Channel:    channelOrDefault(q.Channel),
		Country:    q.Country,
		Resolution: inferResolution(points),
		Points:     points,
	}
	return &ingest.Result{Series: series}, nil
}

func channelOrDefault(c models.Channel) models.Channel {
	if c == "" {
		return models.ChannelTrends
	}
	return c
}

// parseItemTime prefers the unix timestamp field and falls back to the
// human-readable date ("Nov 24, 2024"; ranges use their start date).
func parseItemTime(item timelineItem) (time.Time, error) {
	if item.Timestamp != "" {
		secs, err := strconv.ParseInt(item.Timestamp, 10, 64)
		if err == nil {
			return time.Unix(secs, 0).UTC(), nil
		}
	}

	date := item.Date
	if idx := strings.IndexAny(date, "–—"); idx > 0 {
		// "Nov 24 – 30, 2024": keep the range start, reattach the year.
		start := strings.TrimSpace(date[:idx])
		if comma := strings.LastIndex(date, ","); comma > 0 && !strings.Contains(start, ",") {
			start += date[comma:]
		}
		date = start
	}
	for _, layout := range []string{"Jan 2, 2006", "Jan 2 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, strconv.ErrSyntax
}

// parseValue accepts a numeric extracted_value, a numeric string value,
// or the explicit no-data markers ("", "<1" counts as 0.5). Anything
// else is a schema violation.
func parseValue(extracted json.RawMessage, str string) (float64, bool, error) {
	if len(extracted) > 0 && string(extracted) != "null" {
		var f float64
		if err := json.Unmarshal(extracted, &f); err == nil {
			return f, true, nil
		}
		var s string
		if err := json.Unmarshal(extracted, &s); err == nil {
			return parseStringValue(s)
		}
		return 0, false, strconv.ErrSyntax
	}
	return parseStringValue(str)
}

func parseStringValue(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-":
		return 0, false, nil // explicit no-data marker
	case "<1":
		return 0.5, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

// inferResolution reads the sample spacing: six or more days between
// consecutive points means weekly.
func inferResolution(points []models.Point) models.Resolution {
	if len(points) < 2 {
		return models.ResolutionDaily
	}
	gap := points[1].Timestamp.Sub(points[0].Timestamp)
	if gap >= 6*24*time.Hour {
		return models.ResolutionWeekly
	}
	return models.ResolutionDaily
}
