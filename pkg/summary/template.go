package summary

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/feedsum/feedsum/pkg/domain"
)

// Template renders the per-entry prompt from an external template file. The
// variable contract is fixed: {{.Title}}, {{.Link}}, {{.Body}}, {{.Source}}.
type Template struct {
	tmpl *template.Template
}

// LoadTemplate reads and parses the prompt template, then probe-renders it
// so a broken template fails at startup instead of per entry.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from config
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}

	// missingkey=error turns a typo'd variable into a render error
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	t := &Template{tmpl: tmpl}

	// probe render against the full variable set
	probe := domain.Entry{Title: "probe", Link: "https://example.com", Body: "probe", SourceName: "probe"}
	if err := t.tmpl.Execute(io.Discard, promptVars(probe)); err != nil {
		return nil, fmt.Errorf("validate prompt template: %w", err)
	}

	return t, nil
}

// Render produces the prompt string for one entry
func (t *Template) Render(entry domain.Entry) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, promptVars(entry)); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// promptVars maps an entry onto the template variable contract. A map is
// used so missingkey=error catches references outside the contract.
func promptVars(entry domain.Entry) map[string]string {
	return map[string]string{
		"Title":  entry.Title,
		"Link":   entry.Link,
		"Body":   entry.Body,
		"Source": entry.SourceName,
	}
}
