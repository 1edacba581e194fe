package feed

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedsum/feedsum/pkg/domain"
)

func TestGenerator_RenderRSS(t *testing.T) {
	gen := NewGenerator("https://digest.example.com")
	generated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	digest := &domain.Digest{
		Title:       "Daily Digest",
		Link:        "https://digest.example.com",
		GeneratedAt: generated,
		Items: []domain.SummaryItem{
			{
				GUID:        "guid-1",
				SourceURL:   "https://blog.example.com/feed.xml",
				SourceName:  "Example Blog",
				Title:       "First Article",
				Link:        "https://blog.example.com/first",
				Summary:     "A short summary of the first article.",
				GeneratedAt: generated,
			},
			{
				GUID:        "guid-2",
				Title:       "Second Article",
				Link:        "https://blog.example.com/second",
				Summary:     "Second summary.",
				GeneratedAt: generated.Add(-time.Hour),
			},
		},
	}

	out, err := gen.RenderRSS(digest)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, xml.Header), "document starts with xml declaration")

	// round-trip through the same structs to verify structure
	var parsed RSS
	require.NoError(t, xml.Unmarshal([]byte(strings.TrimPrefix(out, xml.Header)), &parsed))

	assert.Equal(t, "2.0", parsed.Version)
	require.NotNil(t, parsed.Channel)
	assert.Equal(t, "Daily Digest", parsed.Channel.Title)
	assert.Equal(t, "https://digest.example.com/", parsed.Channel.Link)
	assert.Equal(t, generated.Format(time.RFC1123Z), parsed.Channel.LastBuildDate)
	require.NotNil(t, parsed.Channel.AtomLink)
	assert.Equal(t, "https://digest.example.com/rss", parsed.Channel.AtomLink.Href)
	assert.Equal(t, "self", parsed.Channel.AtomLink.Rel)

	require.Len(t, parsed.Channel.Items, 2)
	first := parsed.Channel.Items[0]
	assert.Equal(t, "First Article", first.Title)
	assert.Equal(t, "guid-1", first.GUID)
	assert.Equal(t, "A short summary of the first article.", first.Description)
	require.NotNil(t, first.Source)
	assert.Equal(t, "https://blog.example.com/feed.xml", first.Source.URL)
	assert.Equal(t, "Example Blog", first.Source.Name)

	second := parsed.Channel.Items[1]
	assert.Nil(t, second.Source, "no source element without source attribution")
}

func TestGenerator_RenderRSS_Empty(t *testing.T) {
	gen := NewGenerator("https://digest.example.com")

	out, err := gen.RenderRSS(&domain.Digest{
		Title:       "Daily Digest",
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var parsed RSS
	require.NoError(t, xml.Unmarshal([]byte(strings.TrimPrefix(out, xml.Header)), &parsed))
	require.NotNil(t, parsed.Channel, "zero items still renders a valid channel")
	assert.Empty(t, parsed.Channel.Items)
	assert.NotEmpty(t, parsed.Channel.LastBuildDate)
}

func TestGenerator_RenderRSS_EscapesContent(t *testing.T) {
	gen := NewGenerator("")

	out, err := gen.RenderRSS(&domain.Digest{
		Title:       "Digest <&>",
		GeneratedAt: time.Now(),
		Items: []domain.SummaryItem{
			{GUID: "g", Title: `A "quoted" <title>`, Summary: "1 < 2 && 3 > 2"},
		},
	})
	require.NoError(t, err)

	var parsed RSS
	require.NoError(t, xml.Unmarshal([]byte(strings.TrimPrefix(out, xml.Header)), &parsed))
	assert.Equal(t, "Digest <&>", parsed.Channel.Title)
	assert.Equal(t, `A "quoted" <title>`, parsed.Channel.Items[0].Title)
	assert.Equal(t, "1 < 2 && 3 > 2", parsed.Channel.Items[0].Description)
}
