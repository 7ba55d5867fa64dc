package chat

import (
	"time"

	"github.com/convo-sh/convo/internal/agent"
)

// CommandHistory returns the text of every user message in the filtered
// view, most recent first. Recomputed from current state on each call.
func (e *Engine) CommandHistory() []string {
	filtered := e.hist.Filtered()
	var out []string
	for i := len(filtered) - 1; i >= 0; i-- {
		if filtered[i].IsUser() {
			out = append(out, filtered[i].Text())
		}
	}
	return out
}

// ToolNotification is one progress update for an in-flight tool call.
type ToolNotification struct {
	RequestID string
	Message   string
	Received  time.Time
}

// AddToolNotification records a progress notification from the daemon's flat
// notification stream, grouped by tool-call request id.
func (e *Engine) AddToolNotification(requestID, message string) {
	e.notesMu.Lock()
	e.notes[requestID] = append(e.notes[requestID], ToolNotification{
		RequestID: requestID,
		Message:   message,
		Received:  time.Now(),
	})
	e.notesMu.Unlock()
}

// ToolNotifications returns progress notifications grouped by request id,
// arrival order preserved within each group.
func (e *Engine) ToolNotifications() map[string][]ToolNotification {
	e.notesMu.Lock()
	defer e.notesMu.Unlock()
	out := make(map[string][]ToolNotification, len(e.notes))
	for id, list := range e.notes {
		out[id] = append([]ToolNotification(nil), list...)
	}
	return out
}

// LastAssistantText returns the text of the trailing assistant message, used
// by the renderer while streaming.
func (e *Engine) LastAssistantText() string {
	last, ok := e.hist.Last()
	if !ok || last.Role != agent.RoleAssistant {
		return ""
	}
	return last.Text()
}
