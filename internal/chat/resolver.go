package chat

import (
	"time"

	"github.com/convo-sh/convo/internal/agent"
	"github.com/convo-sh/convo/internal/history"
)

// interruptionNotice is the fixed error result attached to every tool call
// left dangling by a stop. The daemon requires each toolRequest and
// toolConfirmationRequest to be closed by a matching toolResponse before the
// next turn is well-formed.
const interruptionNotice = "Interrupted by the user to make a correction"

// resolution describes the recovery action taken for one stop.
type resolution struct {
	// draft is the recovered, unsent input text; nil when no user message was
	// removed. An empty string is a valid recovered draft.
	draft *string
	// synthesized is the appended tool-closing message, if any.
	synthesized *agent.Message
}

// resolveInterruption inspects the history tail as it stands at stop time and
// applies exactly one recovery action:
//
//  1. empty history: nothing.
//  2. trailing genuine user message without a tool response: the submission
//     never got a reply; remove it and hand its text back to the input.
//  3. trailing assistant message: close every dangling tool call with an
//     error-tagged response, collected into one appended user turn.
//  4. anything else: left untouched.
func resolveInterruption(hist *history.Store) resolution {
	last, ok := hist.Last()
	if !ok {
		return resolution{}
	}

	if last.IsUser() && !last.HasToolResponse() {
		text := last.Text()
		hist.DropLast()
		return resolution{draft: &text}
	}

	if last.Role == agent.RoleAssistant {
		ids := last.PendingToolIDs()
		if len(ids) == 0 {
			return resolution{}
		}
		content := make([]agent.Content, 0, len(ids))
		for _, id := range ids {
			content = append(content, agent.ErrorToolResponse(id, interruptionNotice))
		}
		msg := agent.Message{
			ID:      NewMessageID(),
			Role:    agent.RoleUser,
			Created: time.Now(),
			Content: content,
		}
		hist.Append(msg)
		return resolution{synthesized: &msg}
	}

	return resolution{}
}
