package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/convo-sh/convo/internal/agent"
)

// Status represents the current state of a session.
type Status string

const (
	StatusActive      Status = "active"      // Session is open/current
	StatusComplete    Status = "complete"    // Session finished normally
	StatusError       Status = "error"       // Session ended with an error
	StatusInterrupted Status = "interrupted" // Session was cancelled by user
)

// Session is a conversation's locally persisted metadata. The id doubles as
// the correlation key for the daemon's server-side session storage.
type Session struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary,omitempty"` // First user message or auto-generated
	WorkingDir   string    `json:"working_dir,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Status       Status    `json:"status,omitempty"`
	UserTurns    int       `json:"user_turns,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	TotalTokens  int       `json:"total_tokens,omitempty"`
}

// Message is a persisted conversation message. Body stores the full
// agent.Message as JSON so tool calls and display flags survive round-trips
// exactly.
type Message struct {
	ID          int64         `json:"id"`
	SessionID   string        `json:"session_id"`
	Body        agent.Message `json:"body"`
	TextContent string        `json:"text_content"` // Extracted text for display
	CreatedAt   time.Time     `json:"created_at"`
	Sequence    int           `json:"sequence"`
}

// Summary is a lightweight view of a session for listing.
type Summary struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary,omitempty"`
	WorkingDir   string    `json:"working_dir,omitempty"`
	MessageCount int       `json:"message_count"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	TotalTokens  int       `json:"total_tokens,omitempty"`
	Status       Status    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListOptions configures session listing.
type ListOptions struct {
	Status Status // Filter by status
	Limit  int    // Max results (0 = use default)
	Offset int    // Pagination offset
}

// NewID returns a fresh session id as a date-time token. A conversation
// carrying an id in this format with no persisted messages is a new session.
func NewID() string {
	return time.Now().Format("20060102_150405")
}

// NewMessage wraps an agent.Message for storage. Sequence is auto-allocated
// by the store.
func NewMessage(sessionID string, body agent.Message) *Message {
	m := &Message{
		SessionID: sessionID,
		Body:      body,
		CreatedAt: time.Now(),
		Sequence:  -1,
	}
	m.TextContent = body.Text()
	return m
}

// BodyJSON returns the wrapped message serialized for database storage.
func (m *Message) BodyJSON() (string, error) {
	data, err := json.Marshal(m.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetBodyFromJSON deserializes JSON into the wrapped message.
func (m *Message) SetBodyFromJSON(data string) error {
	if data == "" {
		m.Body = agent.Message{}
		return nil
	}
	return json.Unmarshal([]byte(data), &m.Body)
}

// TruncateSummary returns the first line of content, truncated to 100 chars.
func TruncateSummary(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "\n"); idx != -1 {
		content = content[:idx]
	}
	if len(content) > 100 {
		content = content[:97] + "..."
	}
	return content
}
