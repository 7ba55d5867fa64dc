package agent

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType identifies a message content block.
type ContentType string

const (
	ContentText                    ContentType = "text"
	ContentToolRequest             ContentType = "toolRequest"
	ContentToolResponse            ContentType = "toolResponse"
	ContentToolConfirmationRequest ContentType = "toolConfirmationRequest"
	ContentContextLengthExceeded   ContentType = "contextLengthExceeded"
)

// ToolRequest is a daemon-relayed tool invocation embedded in an assistant message.
type ToolRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResponse closes out a ToolRequest or ToolConfirmationRequest with the same ID.
type ToolResponse struct {
	ID      string `json:"id"`
	Output  string `json:"output,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// ToolConfirmation asks the user to approve a tool invocation before it runs.
type ToolConfirmation struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt,omitempty"`
}

// Content is a single typed block inside a message.
type Content struct {
	Type         ContentType       `json:"type"`
	Text         string            `json:"text,omitempty"`
	ToolRequest  *ToolRequest      `json:"toolRequest,omitempty"`
	ToolResponse *ToolResponse     `json:"toolResponse,omitempty"`
	Confirmation *ToolConfirmation `json:"confirmation,omitempty"`
}

// Message is the atomic unit of conversation exchanged with the daemon.
// Display and SendToLLM default to true when absent.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Created   time.Time `json:"created"`
	Content   []Content `json:"content"`
	Display   *bool     `json:"display,omitempty"`
	SendToLLM *bool     `json:"sendToLLM,omitempty"`
}

// Visible reports whether the message should be shown to the user.
func (m Message) Visible() bool {
	return m.Display == nil || *m.Display
}

// SentToModel reports whether the message is included when resubmitting history.
func (m Message) SentToModel() bool {
	return m.SendToLLM == nil || *m.SendToLLM
}

// IsUser reports whether this is a genuine user message. A message composed
// entirely of toolConfirmationRequest blocks is not a user message even when
// authored with the user role.
func (m Message) IsUser() bool {
	if m.Role != RoleUser {
		return false
	}
	if len(m.Content) == 0 {
		return true
	}
	for _, c := range m.Content {
		if c.Type != ContentToolConfirmationRequest {
			return true
		}
	}
	return false
}

// Text concatenates all text blocks in the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// HasToolResponse reports whether any block carries a tool response.
func (m Message) HasToolResponse() bool {
	for _, c := range m.Content {
		if c.Type == ContentToolResponse {
			return true
		}
	}
	return false
}

// PendingToolIDs returns the ids of every toolRequest and
// toolConfirmationRequest block, in block order.
func (m Message) PendingToolIDs() []string {
	var ids []string
	for _, c := range m.Content {
		switch c.Type {
		case ContentToolRequest:
			if c.ToolRequest != nil {
				ids = append(ids, c.ToolRequest.ID)
			}
		case ContentToolConfirmationRequest:
			if c.Confirmation != nil {
				ids = append(ids, c.Confirmation.ID)
			}
		}
	}
	return ids
}

// UserText builds a visible user message with a single text block.
func UserText(id, text string) Message {
	return Message{
		ID:      id,
		Role:    RoleUser,
		Created: time.Now(),
		Content: []Content{{Type: ContentText, Text: text}},
	}
}

// AssistantText builds a visible assistant message with a single text block.
func AssistantText(id, text string) Message {
	return Message{
		ID:      id,
		Role:    RoleAssistant,
		Created: time.Now(),
		Content: []Content{{Type: ContentText, Text: text}},
	}
}

// ErrorToolResponse builds a toolResponse block carrying an error result.
func ErrorToolResponse(id, message string) Content {
	return Content{
		Type:         ContentToolResponse,
		ToolResponse: &ToolResponse{ID: id, Output: message, IsError: true},
	}
}

// TokenUsage carries authoritative token counts reported by the daemon.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// SessionDetails is persisted session metadata from the daemon.
type SessionDetails struct {
	SessionID    string     `json:"session_id"`
	Description  string     `json:"description,omitempty"`
	WorkingDir   string     `json:"working_dir,omitempty"`
	MessageCount int        `json:"message_count"`
	Usage        TokenUsage `json:"usage"`
}
