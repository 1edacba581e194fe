package feed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/feedsum/feedsum/pkg/domain"
)

// Parser fetches and parses RSS/Atom feeds into normalized entries
type Parser struct {
	client    *http.Client
	userAgent string
	sanitizer *bluemonday.Policy
}

// NewParser creates a new feed parser with a per-request timeout
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Parse fetches the source feed and normalizes its items. Every returned
// entry has a non-empty GUID: the feed's own GUID, the item link, or a stable
// hash of link+title so re-fetches of the same entry dedup correctly.
func (p *Parser) Parse(ctx context.Context, src domain.Source) ([]domain.Entry, error) {
	body, err := p.fetch(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	parser := gofeed.NewParser()
	parsed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]domain.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry := domain.Entry{
			SourceURL:  src.URL,
			SourceName: src.Label(),
			Title:      strings.TrimSpace(item.Title),
			Link:       item.Link,
			Body:       p.entryBody(item),
		}

		// set GUID with deterministic fallback
		switch {
		case item.GUID != "":
			entry.GUID = item.GUID
		case item.Link != "":
			entry.GUID = item.Link
		default:
			entry.GUID = hashID(item.Link, item.Title)
		}

		// set published time, falling back to the updated time
		if item.PublishedParsed != nil {
			entry.Published = *item.PublishedParsed
			entry.HasPublished = true
		} else if item.UpdatedParsed != nil {
			entry.Published = *item.UpdatedParsed
			entry.HasPublished = true
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// entryBody picks the richest text the feed provides and strips it to plain
// text, feeds routinely carry HTML in descriptions
func (p *Parser) entryBody(item *gofeed.Item) string {
	body := item.Content
	if body == "" {
		body = item.Description
	}
	body = p.sanitizer.Sanitize(body)
	body = html.UnescapeString(body)
	return strings.TrimSpace(body)
}

// fetch retrieves content from a URL
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)
	addFeedHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// hashID derives a stable identifier for entries the feed gives no usable id
func hashID(link, title string) string {
	sum := sha256.Sum256([]byte(link + "\n" + title))
	return fmt.Sprintf("sha256:%x", sum[:16])
}

// addFeedHeaders adds headers some feed endpoints insist on before serving
// XML to a non-browser client
func addFeedHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
}
