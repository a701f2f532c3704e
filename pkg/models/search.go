package models

import (
	"fmt"
	"time"
)

// ResultKind classifies a search result's query intent.
type ResultKind string

const (
	KindQuestion  ResultKind = "question"
	KindAttribute ResultKind = "attribute"
)

// SearchResult is one discrete ranked result from a search-type channel.
// Only fields common to every channel are promoted; channel-specific
// fields (price, source, duration, thumbnail...) live in Extra and are
// read only by that channel's scorer logic.
type SearchResult struct {
	EntityID   string            `json:"entity_id"`
	Channel    Channel           `json:"channel"`
	Title      string            `json:"title"`
	URL        string            `json:"url"`
	Position   *int              `json:"position,omitempty"` // 1-based rank, nil when the channel has no ranking
	Snippet    string            `json:"snippet,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
	Kind       ResultKind        `json:"kind,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// SearchResultSet is the canonical shape for one fetch of ranked results.
type SearchResultSet struct {
	EntityID  string         `json:"entity_id"`
	Channel   Channel        `json:"channel"`
	Country   string         `json:"country,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
	Results   []SearchResult `json:"results"`
}

// Validate checks that positions, where present, are unique within the set.
func (s *SearchResultSet) Validate() error {
	seen := make(map[int]bool, len(s.Results))
	for i, r := range s.Results {
		if r.Position == nil {
			continue
		}
		if seen[*r.Position] {
			return fmt.Errorf("duplicate position %d at result %d", *r.Position, i)
		}
		seen[*r.Position] = true
	}
	return nil
}

// RelevanceScore is the scored attention value of a single result.
// Factors holds each factor's weighted contribution; the contributions
// sum to Score so the driving factor can always be explained.
type RelevanceScore struct {
	ResultURL string             `json:"result_url"`
	Kind      ResultKind         `json:"kind,omitempty"`
	Score     float64            `json:"score"` // [0,1]
	Factors   map[string]float64 `json:"contributing_factors"`
}
