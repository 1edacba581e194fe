package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/feedsum/feedsum/pkg/domain"
)

// Generator renders the digest as an RSS 2.0 document
type Generator struct {
	baseURL string
}

// NewGenerator creates a new feed generator. baseURL is the public address
// the digest is served from, used for the channel and self links.
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// RenderRSS creates an RSS 2.0 document from the digest. The result is a
// structurally valid feed for any item count, including zero.
func (g *Generator) RenderRSS(digest *domain.Digest) (string, error) {
	rssItems := make([]*RSSItem, 0, len(digest.Items))
	for _, item := range digest.Items {
		rssItems = append(rssItems, g.convertToRSSItem(item))
	}

	link := g.baseURL + "/"
	if g.baseURL == "" {
		link = "/"
	}

	out := &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &RSSChannel{
			Title:         digest.Title,
			Link:          link,
			Description:   fmt.Sprintf("AI-generated summaries of %d source entries", len(digest.Items)),
			AtomLink:      &AtomLink{Href: g.baseURL + "/rss", Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: digest.GeneratedAt.Format(time.RFC1123Z),
			Items:         rssItems,
		},
	}

	data, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	return xml.Header + string(data), nil
}

// convertToRSSItem converts a summary item to an RSS item
func (g *Generator) convertToRSSItem(item domain.SummaryItem) *RSSItem {
	rssItem := &RSSItem{
		Title:       item.Title,
		Link:        item.Link,
		GUID:        item.GUID,
		Description: item.Summary,
		PubDate:     item.GeneratedAt.Format(time.RFC1123Z),
	}
	if item.SourceURL != "" || item.SourceName != "" {
		rssItem.Source = &RSSSource{URL: item.SourceURL, Name: item.SourceName}
	}
	return rssItem
}
