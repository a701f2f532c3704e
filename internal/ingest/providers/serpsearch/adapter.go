// Package serpsearch normalizes SerpAPI Google Search payloads into
// canonical SearchResultSet records. One adapter serves the web, news,
// shopping and video channels by reading the matching result section.
package serpsearch

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/pkg/models"
)

const providerID = "serpsearch"

type payload struct {
	SearchMetadata struct {
		CreatedAt string `json:"created_at"`
	} `json:"search_metadata"`
	OrganicResults  []organicResult  `json:"organic_results"`
	NewsResults     []newsResult     `json:"news_results"`
	ShoppingResults []shoppingResult `json:"shopping_results"`
	VideoResults    []videoResult    `json:"video_results"`
}

type organicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"`
}

type newsResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Source   string `json:"source"`
	Date     string `json:"date"`
}

type shoppingResult struct {
	Position  int     `json:"position"`
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	Price     string  `json:"price"`
	Source    string  `json:"source"`
	Thumbnail string  `json:"thumbnail"`
	Rating    float64 `json:"rating"`
}

type videoResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Duration string `json:"duration"`
	Channel  string `json:"channel"`
}

// Adapter parses ranked-result payloads.
type Adapter struct{}

// New creates the search adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Info() ingest.AdapterInfo {
	return ingest.AdapterInfo{
		ID:          providerID,
		Description: "SerpAPI Google Search ranked-result payloads",
		Produces:    ingest.PayloadSearchResults,
		Channels: []models.Channel{
			models.ChannelWeb, models.ChannelNews,
			models.ChannelShopping, models.ChannelVideo,
		},
	}
}

// Normalize extracts the result section matching q.Channel. An empty
// section for the requested channel is a schema violation: the caller
// asked for a channel the payload does not carry.
func (a *Adapter) Normalize(raw []byte, q ingest.Query) (*ingest.Result, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ingest.MalformedPayloadError{Provider: providerID, Detail: err.Error()}
	}

	observed := parseCreatedAt(p.SearchMetadata.CreatedAt)

	var results []models.SearchResult
	switch q.Channel {
	case models.ChannelWeb:
		for _, r := range p.OrganicResults {
			results = append(results, promote(q, r.Title, r.Link, r.Snippet, r.Position, observed, map[string]string{
				"date": r.Date,
			}))
		}
	case models.ChannelNews:
		for _, r := range p.NewsResults {
			results = append(results, promote(q, r.Title, r.Link, r.Snippet, r.Position, observed, map[string]string{
				"source": r.Source,
				"date":   r.Date,
			}))
		}
	case models.ChannelShopping:
		for _, r := range p.ShoppingResults {
			extra := map[string]string{
				"price":     r.Price,
				"source":    r.Source,
				"thumbnail": r.Thumbnail,
			}
			if r.Rating > 0 {
				extra["rating"] = strconv.FormatFloat(r.Rating, 'f', -1, 64)
			}
			results = append(results, promote(q, r.Title, r.Link, "", r.Position, observed, extra))
		}
	case models.ChannelVideo:
		for _, r := range p.VideoResults {
			results = append(results, promote(q, r.Title, r.Link, r.Snippet, r.Position, observed, map[string]string{
				"duration": r.Duration,
				"channel":  r.Channel,
			}))
		}
	default:
		return nil, &ingest.MalformedPayloadError{
			Provider: providerID,
			Detail:   "unsupported channel " + string(q.Channel),
		}
	}

	if len(results) == 0 {
		return nil, &ingest.MalformedPayloadError{
			Provider: providerID,
			Field:    string(q.Channel) + "_results",
			Detail:   "missing or empty",
		}
	}

	set := &models.SearchResultSet{
		EntityID:  q.EntityID,
		Channel:   q.Channel,
		Country:   q.Country,
		FetchedAt: observed,
		Results:   results,
	}
	return &ingest.Result{Results: set}, nil
}

func promote(q ingest.Query, title, link, snippet string, position int, observed time.Time, extra map[string]string) models.SearchResult {
	r := models.SearchResult{
		EntityID:   q.EntityID,
		Channel:    q.Channel,
		Title:      title,
		URL:        link,
		Snippet:    snippet,
		ObservedAt: observed,
	}
	if position > 0 {
		pos := position
		r.Position = &pos
	}
	for k, v := range extra {
		if v == "" {
			delete(extra, k)
		}
	}
	if len(extra) > 0 {
		r.Extra = extra
	}
	return r
}

// parseCreatedAt returns the zero time when the payload carries no
// usable timestamp; scoring treats that as recency-neutral.
func parseCreatedAt(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05 MST", "2006-01-02 15:04:05 -07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
