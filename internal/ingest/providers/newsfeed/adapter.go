// Package newsfeed normalizes pre-fetched RSS/Atom payloads into
// canonical SearchResultSet records for the news channel.
package newsfeed

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/pkg/models"
)

const providerID = "newsfeed"

// Adapter parses RSS/Atom feed documents.
type Adapter struct {
	parser *gofeed.Parser
}

// New creates the feed adapter.
func New() *Adapter {
	return &Adapter{parser: gofeed.NewParser()}
}

func (a *Adapter) Info() ingest.AdapterInfo {
	return ingest.AdapterInfo{
		ID:          providerID,
		Description: "RSS/Atom news feed payloads",
		Produces:    ingest.PayloadSearchResults,
		Channels:    []models.Channel{models.ChannelNews},
	}
}

// Normalize parses the feed document. Feed items have no rank, so
// Position stays nil; the item publication time becomes ObservedAt.
func (a *Adapter) Normalize(raw []byte, q ingest.Query) (*ingest.Result, error) {
	feed, err := a.parser.ParseString(string(raw))
	if err != nil {
		return nil, &ingest.MalformedPayloadError{Provider: providerID, Detail: err.Error()}
	}
	if len(feed.Items) == 0 {
		return nil, &ingest.MalformedPayloadError{Provider: providerID, Field: "items", Detail: "feed has no items"}
	}

	channel := q.Channel
	if channel == "" {
		channel = models.ChannelNews
	}

	var newest time.Time
	results := make([]models.SearchResult, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" || item.Link == "" {
			return nil, &ingest.MalformedPayloadError{
				Provider: providerID,
				Field:    "items",
				Detail:   "item missing title or link",
			}
		}

		observed := time.Time{}
		if item.PublishedParsed != nil {
			observed = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			observed = item.UpdatedParsed.UTC()
		}
		if observed.After(newest) {
			newest = observed
		}

		extra := map[string]string{}
		if feed.Title != "" {
			extra["source"] = feed.Title
		}
		if len(item.Categories) > 0 {
			extra["categories"] = strings.Join(item.Categories, ",")
		}
		if len(extra) == 0 {
			extra = nil
		}

		results = append(results, models.SearchResult{
			EntityID:   q.EntityID,
			Channel:    channel,
			Title:      item.Title,
			URL:        item.Link,
			Snippet:    strings.TrimSpace(item.Description),
			ObservedAt: observed,
			Extra:      extra,
		})
	}

	set := &models.SearchResultSet{
		EntityID:  q.EntityID,
		Channel:   channel,
		Country:   q.Country,
		FetchedAt: newest,
		Results:   results,
	}
	return &ingest.Result{Results: set}, nil
}
