// Package render turns API results into table, JSON or YAML output.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/chatwatch/internal/api"
)

// Formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Transcript is every execution of one chat session.
type Transcript struct {
	SessionID string                `json:"session_id" yaml:"session_id"`
	Records   []api.ExecutionRecord `json:"results" yaml:"results"`
}

// Renderer serializes a result to bytes. Supported values are
// *api.ListResult, *api.SummaryData and *Transcript.
type Renderer interface {
	Render(v any) ([]byte, error)
}

// New returns the renderer for format.
func New(format string) (Renderer, error) {
	switch format {
	case FormatTable, "":
		return &TableRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatYAML:
		return &YAMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// JSONRenderer renders indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// YAMLRenderer renders YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// dateLayouts are tried in order when parsing API timestamps.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDate renders an API timestamp as "Jan 2, 2006 3:04 PM". Empty input
// yields "N/A" and unparsable input "Invalid date".
func FormatDate(s string) string {
	if s == "" {
		return "N/A"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2, 2006 3:04 PM")
		}
	}
	return "Invalid date"
}

// Truncate collapses whitespace and shortens s to at most width display
// cells, ending with an ellipsis when cut.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}

// orNA returns "N/A" for an empty string.
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
