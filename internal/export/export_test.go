package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/convo-sh/convo/internal/agent"
	"github.com/convo-sh/convo/internal/session"
)

func sampleDocument() *Document {
	created := time.Date(2026, 8, 23, 10, 15, 0, 0, time.UTC)
	hidden := false
	return &Document{
		Session: session.Session{
			ID:        "20260823_101500",
			Summary:   "debugging a flaky test",
			CreatedAt: created,
			UpdatedAt: created,
		},
		Messages: []session.Message{
			{SessionID: "20260823_101500", Sequence: 0, CreatedAt: created,
				Body: agent.UserText("m1", "why is this test flaky?")},
			{SessionID: "20260823_101500", Sequence: 1, CreatedAt: created,
				Body: agent.Message{
					ID:   "a1",
					Role: agent.RoleAssistant,
					Content: []agent.Content{
						{Type: agent.ContentText, Text: "Let me look."},
						{Type: agent.ContentToolRequest, ToolRequest: &agent.ToolRequest{ID: "call-a", Name: "shell"}},
					},
				}},
			{SessionID: "20260823_101500", Sequence: 2, CreatedAt: created,
				Body: agent.Message{
					ID:      "m2",
					Role:    agent.RoleUser,
					Content: []agent.Content{{Type: agent.ContentText, Text: "hidden bookkeeping"}},
					Display: &hidden,
				}},
		},
	}
}

func TestNewExporterFormats(t *testing.T) {
	for _, format := range []string{"md", "markdown", "yaml", "json"} {
		if _, err := NewExporter(format); err != nil {
			t.Errorf("NewExporter(%q): %v", format, err)
		}
	}
	if _, err := NewExporter("pdf"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestMarkdownExportSkipsHiddenMessages(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(sampleDocument(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Session 20260823_101500",
		"debugging a flaky test",
		"why is this test flaky?",
		"tool call `shell`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(out, "hidden bookkeeping") {
		t.Error("display=false message leaked into markdown export")
	}
}

func TestJSONExportRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleDocument(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var got Document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Session.ID != "20260823_101500" || len(got.Messages) != 3 {
		t.Fatalf("round-trip lost data: %+v", got.Session)
	}
	if got.Messages[1].Body.Content[1].ToolRequest.Name != "shell" {
		t.Fatal("tool request lost in round-trip")
	}
}

func TestExtensions(t *testing.T) {
	cases := map[string]string{"md": "md", "yaml": "yaml", "json": "json"}
	for format, want := range cases {
		exp, err := NewExporter(format)
		if err != nil {
			t.Fatalf("NewExporter(%q): %v", format, err)
		}
		if got := exp.Extension(); got != want {
			t.Errorf("Extension(%s) = %q, want %q", format, got, want)
		}
	}
}
