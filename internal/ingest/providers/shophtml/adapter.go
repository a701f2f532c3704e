// Package shophtml normalizes pre-fetched retailer product-listing HTML
// into canonical SearchResultSet records for the shopping channel.
//
// The selectors target the common listing markup of large retailers:
// each result card is an element tagged data-component-type
// "s-search-result" (or a li.product-item fallback), with the title in
// the card heading and the price in a .price / .a-price element.
package shophtml

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/pkg/models"
)

const providerID = "shophtml"

// Adapter parses product-listing HTML documents.
type Adapter struct{}

// New creates the shopping HTML adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Info() ingest.AdapterInfo {
	return ingest.AdapterInfo{
		ID:          providerID,
		Description: "retailer product-listing HTML payloads",
		Produces:    ingest.PayloadSearchResults,
		Channels:    []models.Channel{models.ChannelShopping},
	}
}

// Normalize extracts the product cards in document order; the card
// order becomes the 1-based position.
func (a *Adapter) Normalize(raw []byte, q ingest.Query) (*ingest.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ingest.MalformedPayloadError{Provider: providerID, Detail: err.Error()}
	}

	channel := q.Channel
	if channel == "" {
		channel = models.ChannelShopping
	}

	cards := doc.Find(`[data-component-type="s-search-result"]`)
	if cards.Length() == 0 {
		cards = doc.Find("li.product-item, div.product-card")
	}
	if cards.Length() == 0 {
		return nil, &ingest.MalformedPayloadError{
			Provider: providerID,
			Field:    "s-search-result",
			Detail:   "no product cards found",
		}
	}

	var results []models.SearchResult
	cards.Each(func(i int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find("h2").First().Text())
		if title == "" {
			title = strings.TrimSpace(card.Find(".product-title, .title").First().Text())
		}

		link, _ := card.Find("h2 a, a.product-link, a").First().Attr("href")

		price := strings.TrimSpace(card.Find(".a-price .a-offscreen").First().Text())
		if price == "" {
			price = strings.TrimSpace(card.Find(".price").First().Text())
		}
		rating := strings.TrimSpace(card.Find(".a-icon-alt, .rating").First().Text())

		if title == "" || link == "" {
			return // skip cards without the promoted fields
		}

		pos := i + 1
		extra := map[string]string{}
		if price != "" {
			extra["price"] = price
		}
		if rating != "" {
			extra["rating"] = rating
		}
		if len(extra) == 0 {
			extra = nil
		}

		results = append(results, models.SearchResult{
			EntityID: q.EntityID,
			Channel:  channel,
			Title:    title,
			URL:      link,
			Position: &pos,
			Extra:    extra,
		})
	})

	if len(results) == 0 {
		return nil, &ingest.MalformedPayloadError{
			Provider: providerID,
			Detail:   "no product cards with title and link",
		}
	}

	set := &models.SearchResultSet{
		EntityID:  q.EntityID,
		Channel:   channel,
		Country:   q.Country,
		FetchedAt: time.Time{},
		Results:   results,
	}
	return &ingest.Result{Results: set}, nil
}
