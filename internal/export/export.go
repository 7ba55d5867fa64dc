// Package export writes persisted sessions to portable formats.
package export

import (
	"fmt"
	"io"

	"github.com/convo-sh/convo/internal/session"
)

// Document bundles a session with its messages for export.
type Document struct {
	Session  session.Session   `json:"session" yaml:"session"`
	Messages []session.Message `json:"messages" yaml:"messages"`
}

// Exporter defines the interface for all export formats.
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, yaml, json)", format)
	}
}
