package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/feedsum/feedsum/pkg/domain"
)

// sourcesFile is the on-disk shape of the feed sources declaration
type sourcesFile struct {
	Feeds []domain.Source `yaml:"feeds"`
}

// LoadSources reads the feed sources declaration file. The file is re-read on
// every refresh, so edits take effect without a restart. Sources with a
// missing or unparsable URL are dropped with a warning; an empty resulting
// list is legal and left to the caller to handle.
func LoadSources(path string) ([]domain.Source, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from config
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var parsed sourcesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	sources := make([]domain.Source, 0, len(parsed.Feeds))
	for _, s := range parsed.Feeds {
		if s.URL == "" {
			lgr.Printf("[WARN] skipping source without url (name: %q)", s.Name)
			continue
		}
		u, err := url.Parse(s.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			lgr.Printf("[WARN] skipping source with invalid url %q", s.URL)
			continue
		}
		sources = append(sources, s)
	}

	return sources, nil
}
