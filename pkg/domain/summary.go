package domain

import "time"

// SummaryItem is one successfully summarized entry, a candidate for the
// published digest. Immutable once created.
type SummaryItem struct {
	GUID        string
	SourceURL   string
	SourceName  string
	Title       string
	Link        string
	Summary     string
	GeneratedAt time.Time
}

// Digest is the aggregated output feed document, items newest first
type Digest struct {
	Title       string
	Link        string
	GeneratedAt time.Time
	Items       []SummaryItem
}
