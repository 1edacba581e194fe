package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedsum/feedsum/pkg/domain"
)

func feedServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(content)) //nolint:errcheck // test server
	}))
	t.Cleanup(server.Close)
	return server
}

func TestParser_Parse(t *testing.T) {
	rssContent := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Test Feed</title>
	<link>http://example.com</link>
	<description>Test Description</description>
	<item>
		<title>Test Article 1</title>
		<link>http://example.com/article1</link>
		<description><![CDATA[<p>Article <b>1</b> description</p>]]></description>
		<pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
		<guid>http://example.com/article1</guid>
	</item>
	<item>
		<title>Test Article 2</title>
		<link>http://example.com/article2</link>
		<description>Article 2 description</description>
		<pubDate>Tue, 03 Jan 2006 15:04:05 -0700</pubDate>
	</item>
</channel>
</rss>`

	server := feedServer(t, rssContent)

	parser := NewParser(5*time.Second, "Feedsum/1.0")
	src := domain.Source{URL: server.URL, Name: "Test Source"}
	entries, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// check first entry
	e1 := entries[0]
	assert.Equal(t, "Test Article 1", e1.Title)
	assert.Equal(t, "http://example.com/article1", e1.Link)
	assert.Equal(t, "http://example.com/article1", e1.GUID)
	assert.Equal(t, "Article 1 description", e1.Body, "html stripped to plain text")
	assert.Equal(t, server.URL, e1.SourceURL)
	assert.Equal(t, "Test Source", e1.SourceName)
	assert.True(t, e1.HasPublished)
	assert.False(t, e1.Published.IsZero())

	// check second entry - should use link as GUID
	e2 := entries[1]
	assert.Equal(t, "http://example.com/article2", e2.GUID)
}

func TestParser_Parse_HashGUID(t *testing.T) {
	rssContent := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Test Feed</title>
	<item>
		<title>No GUID Article</title>
		<description>Article without GUID or link</description>
	</item>
</channel>
</rss>`

	server := feedServer(t, rssContent)
	parser := NewParser(5*time.Second, "Feedsum/1.0")
	src := domain.Source{URL: server.URL}

	entries, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	guid := entries[0].GUID
	assert.Contains(t, guid, "sha256:")

	// same entry re-fetched must hash to the same id
	again, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, guid, again[0].GUID)
}

func TestParser_Parse_Undated(t *testing.T) {
	rssContent := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Test Feed</title>
	<item>
		<title>Undated Article</title>
		<link>http://example.com/undated</link>
		<description>No pubDate here</description>
	</item>
</channel>
</rss>`

	server := feedServer(t, rssContent)
	parser := NewParser(5*time.Second, "Feedsum/1.0")

	entries, err := parser.Parse(context.Background(), domain.Source{URL: server.URL})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].HasPublished)
	assert.True(t, entries[0].Published.IsZero())
}

func TestParser_Parse_AtomFeed(t *testing.T) {
	atomContent := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Test Atom Feed</title>
	<link href="http://example.com"/>
	<entry>
		<title>Atom Entry 1</title>
		<link href="http://example.com/entry1"/>
		<id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
		<updated>2006-01-02T15:04:05Z</updated>
		<summary>Entry 1 summary</summary>
	</entry>
</feed>`

	server := feedServer(t, atomContent)
	parser := NewParser(5*time.Second, "Feedsum/1.0")

	entries, err := parser.Parse(context.Background(), domain.Source{URL: server.URL})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "Atom Entry 1", e.Title)
	assert.Equal(t, "http://example.com/entry1", e.Link)
	assert.Equal(t, "urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a", e.GUID)
	assert.True(t, e.HasPublished, "atom updated time used as published fallback")
}

func TestParser_Parse_Errors(t *testing.T) {
	t.Run("HTTP error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		parser := NewParser(5*time.Second, "Feedsum/1.0")
		_, err := parser.Parse(context.Background(), domain.Source{URL: server.URL})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status code: 500")
	})

	t.Run("invalid XML", func(t *testing.T) {
		server := feedServer(t, "not xml")
		parser := NewParser(5*time.Second, "Feedsum/1.0")
		_, err := parser.Parse(context.Background(), domain.Source{URL: server.URL})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse feed")
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("too late")) //nolint:errcheck // test server
		}))
		defer server.Close()

		parser := NewParser(100*time.Millisecond, "Feedsum/1.0")
		_, err := parser.Parse(context.Background(), domain.Source{URL: server.URL})
		require.Error(t, err)
	})

	t.Run("invalid URL", func(t *testing.T) {
		parser := NewParser(5*time.Second, "Feedsum/1.0")
		_, err := parser.Parse(context.Background(), domain.Source{URL: "not-a-url"})
		require.Error(t, err)
	})
}
