package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/convo-sh/convo/internal/agent"
	"github.com/convo-sh/convo/internal/chat"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderConversation())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	return b.String()
}

func (m *Model) renderConversation() string {
	width := m.width
	if width < 20 {
		width = 80
	}

	var b strings.Builder
	for _, msg := range m.engine.Filtered() {
		switch msg.Role {
		case agent.RoleUser:
			if msg.HasToolResponse() {
				// Synthesized tool closures aren't user prose.
				b.WriteString(toolStyle.Render("· tool calls interrupted") + "\n")
				continue
			}
			b.WriteString(promptStyle.Render("❯ ") + msg.Text() + "\n")
		case agent.RoleAssistant:
			b.WriteString(m.renderAssistant(msg, width))
		}
	}
	return b.String()
}

func (m *Model) renderAssistant(msg agent.Message, width int) string {
	var b strings.Builder
	for _, c := range msg.Content {
		switch c.Type {
		case agent.ContentText:
			b.WriteString(renderMarkdown(c.Text, width))
		case agent.ContentToolRequest:
			if c.ToolRequest != nil {
				b.WriteString(toolStyle.Render(fmt.Sprintf("· running %s", c.ToolRequest.Name)) + "\n")
			}
		case agent.ContentToolConfirmationRequest:
			if c.Confirmation != nil {
				b.WriteString(toolStyle.Render(fmt.Sprintf("? approve %s", c.Confirmation.Name)) + "\n")
			}
		case agent.ContentContextLengthExceeded:
			b.WriteString(errorStyle.Render("context length exceeded") + "\n")
		}
	}
	return b.String()
}

// renderMarkdown renders assistant text through glamour, falling back to the
// raw text on failure.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (m *Model) renderStatus() string {
	var parts []string

	switch m.engine.State() {
	case chat.StateStreaming:
		parts = append(parts, m.spinner.View()+" thinking (esc to stop)")
	case chat.StateWaiting:
		parts = append(parts, "waiting for confirmation")
	case chat.StateError:
		if err := m.engine.Err(); err != nil && !agent.IsTokenLimit(err) {
			parts = append(parts, errorStyle.Render(truncateStatus(err.Error(), m.width)))
		}
	}

	usage := m.engine.TokenCounts()
	src := "est"
	if usage.Authoritative {
		src = "srv"
	}
	parts = append(parts, fmt.Sprintf("tokens %d (%s)", usage.TotalTokens, src))

	return statusStyle.Render(strings.Join(parts, "  "))
}

// truncateStatus keeps a status fragment within the terminal width.
func truncateStatus(s string, width int) string {
	if width <= 10 {
		return s
	}
	return runewidth.Truncate(s, width-10, "…")
}
