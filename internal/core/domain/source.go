package domain

import (
	"fmt"
	"strings"
)

// Source identifies a third-party SaaS provider.
type Source string

// Supported sources.
const (
	SourceGoogle    Source = "GOOGLE"
	SourceMicrosoft Source = "MICROSOFT"
	SourceDropbox   Source = "DROPBOX"
	SourceSlack     Source = "SLACK"
	SourceFigma     Source = "FIGMA"
	SourceLinear    Source = "LINEAR"
	SourceJira      Source = "JIRA"
	SourceNotion    Source = "NOTION"
)

var allSources = []Source{
	SourceGoogle,
	SourceMicrosoft,
	SourceDropbox,
	SourceSlack,
	SourceFigma,
	SourceLinear,
	SourceJira,
	SourceNotion,
}

var sourceNames = map[Source]string{
	SourceGoogle:    "Google Workspace",
	SourceMicrosoft: "Microsoft 365",
	SourceDropbox:   "Dropbox",
	SourceSlack:     "Slack",
	SourceFigma:     "Figma",
	SourceLinear:    "Linear",
	SourceJira:      "Jira",
	SourceNotion:    "Notion",
}

// AllSources returns every supported source in a stable order.
func AllSources() []Source {
	out := make([]Source, len(allSources))
	copy(out, allSources)
	return out
}

// ParseSource converts a string such as "google" or "GOOGLE" to a Source.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToUpper(strings.TrimSpace(s)))
	if !src.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, s)
	}
	return src, nil
}

// IsValid returns true if the source is recognised.
func (s Source) IsValid() bool {
	_, ok := sourceNames[s]
	return ok
}

// String returns the enum value.
func (s Source) String() string {
	return string(s)
}

// Slug returns the lower-case form used in URL paths and env var lookups.
func (s Source) Slug() string {
	return strings.ToLower(string(s))
}

// DisplayName returns a human-readable name.
func (s Source) DisplayName() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return string(s)
}
