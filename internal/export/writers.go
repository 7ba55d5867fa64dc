package export

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/convo-sh/convo/internal/agent"
)

// JSONExporter exports sessions as indented JSON.
type JSONExporter struct{}

func (e *JSONExporter) Export(doc *Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (e *JSONExporter) Extension() string { return "json" }

// YAMLExporter exports sessions as YAML.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(doc *Document, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	return enc.Encode(doc)
}

func (e *YAMLExporter) Extension() string { return "yaml" }

// MarkdownExporter exports the displayable conversation as Markdown.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Session %s\n\n", doc.Session.ID)
	if doc.Session.Summary != "" {
		_, _ = fmt.Fprintf(w, "**Summary:** %s  \n", doc.Session.Summary)
	}
	if doc.Session.WorkingDir != "" {
		_, _ = fmt.Fprintf(w, "**Working dir:** %s  \n", doc.Session.WorkingDir)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n---\n\n", len(doc.Messages))

	for _, msg := range doc.Messages {
		if !msg.Body.Visible() {
			continue
		}
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n", msg.Body.Role, msg.CreatedAt.Format("2006-01-02 15:04:05"))
		for _, c := range msg.Body.Content {
			switch c.Type {
			case agent.ContentText:
				_, _ = fmt.Fprintf(w, "%s\n\n", c.Text)
			case agent.ContentToolRequest:
				if c.ToolRequest != nil {
					_, _ = fmt.Fprintf(w, "> tool call `%s` (%s)\n\n", c.ToolRequest.Name, c.ToolRequest.ID)
				}
			case agent.ContentToolResponse:
				if c.ToolResponse != nil {
					status := "ok"
					if c.ToolResponse.IsError {
						status = "error"
					}
					_, _ = fmt.Fprintf(w, "> tool result %s (%s): %s\n\n", c.ToolResponse.ID, status, c.ToolResponse.Output)
				}
			case agent.ContentToolConfirmationRequest:
				if c.Confirmation != nil {
					_, _ = fmt.Fprintf(w, "> confirmation requested for `%s` (%s)\n\n", c.Confirmation.Name, c.Confirmation.ID)
				}
			}
		}
		_, _ = fmt.Fprintf(w, "---\n\n")
	}
	return nil
}

func (e *MarkdownExporter) Extension() string { return "md" }
