package newsfeed

import (
	"errors"
	"testing"
	"time"

	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/pkg/models"
)

const rssPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Daily Fizz</title>
	<link>https://news.example</link>
	<item>
		<title>Acme launches new flavor</title>
		<link>https://news.example/1</link>
		<description>The soda maker announced a mango variant.</description>
		<pubDate>Mon, 01 Jun 2026 09:00:00 GMT</pubDate>
		<category>beverages</category>
	</item>
	<item>
		<title>Acme signs stadium deal</title>
		<link>https://news.example/2</link>
		<description>Sponsorship through 2030.</description>
		<pubDate>Sun, 31 May 2026 15:00:00 GMT</pubDate>
	</item>
</channel>
</rss>`

func query() ingest.Query {
	return ingest.Query{EntityID: "acme", Channel: models.ChannelNews}
}

func TestNormalizeFeed(t *testing.T) {
	res, err := New().Normalize([]byte(rssPayload), query())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	set := res.Results
	if set == nil || len(set.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", set)
	}

	first := set.Results[0]
	if first.Title != "Acme launches new flavor" || first.URL != "https://news.example/1" {
		t.Errorf("promoted fields: got %q %q", first.Title, first.URL)
	}
	if first.Position != nil {
		t.Error("feed items carry no rank; Position must stay nil")
	}
	want := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	if !first.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt: got %v, want %v", first.ObservedAt, want)
	}
	if first.Extra["source"] != "Daily Fizz" {
		t.Errorf("source: got %q", first.Extra["source"])
	}
	if !set.FetchedAt.Equal(want) {
		t.Errorf("FetchedAt should be the newest item time: got %v", set.FetchedAt)
	}
}

func TestNormalizeEmptyFeed(t *testing.T) {
	raw := `<?xml version="1.0"?><rss version="2.0"><channel><title>empty</title></channel></rss>`
	_, err := New().Normalize([]byte(raw), query())
	var mp *ingest.MalformedPayloadError
	if !errors.As(err, &mp) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}

func TestNormalizeItemMissingLink(t *testing.T) {
	raw := `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title>
		<item><title>no link here</title></item></channel></rss>`
	_, err := New().Normalize([]byte(raw), query())
	var mp *ingest.MalformedPayloadError
	if !errors.As(err, &mp) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}

func TestNormalizeNotAFeed(t *testing.T) {
	_, err := New().Normalize([]byte(`{"organic_results":[]}`), query())
	var mp *ingest.MalformedPayloadError
	if !errors.As(err, &mp) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}
