package domain

import "time"

// Source is a single configured feed source
type Source struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name,omitempty"`
}

// Label returns a human-readable identifier for the source
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// Entry is a normalized item fetched from a source feed. GUID is always
// populated: the feed's own GUID, the link, or a stable hash of link+title.
type Entry struct {
	SourceURL  string
	SourceName string
	GUID       string
	Title      string
	Link       string
	Body       string
	Published  time.Time
	// HasPublished is false when the source feed carries no usable timestamp;
	// such entries are included or excluded per the configured undated policy
	HasPublished bool
}
