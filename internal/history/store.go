// Package history owns the ordered, mutable message sequence for one
// conversation: an immutable ancestor prefix established by summarization
// plus a live tail.
package history

import (
	"sync"

	"github.com/convo-sh/convo/internal/agent"
)

// Store holds the authoritative message list for a conversation.
// All mutation goes through the engine; rendering code only reads views.
type Store struct {
	mu        sync.RWMutex
	ancestors []agent.Message
	tail      []agent.Message
	recorder  Recorder
}

// NewStore creates an empty store. recorder may be nil.
func NewStore(recorder Recorder) *Store {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Store{recorder: recorder}
}

// Hydrate seeds the tail from persisted session messages.
func (s *Store) Hydrate(messages []agent.Message) {
	s.mu.Lock()
	s.tail = append([]agent.Message(nil), messages...)
	s.mu.Unlock()
}

// Append inserts a message at the tail. User-authored text is forwarded to
// the recorder best-effort; recorder failure never rolls back the append.
func (s *Store) Append(msg agent.Message) {
	s.mu.Lock()
	s.tail = append(s.tail, msg)
	s.mu.Unlock()

	if msg.IsUser() {
		if text := msg.Text(); text != "" {
			_ = s.recorder.Record(text)
		}
	}
}

// Replace atomically swaps the whole tail. The ancestor prefix is unaffected.
func (s *Store) Replace(messages []agent.Message) {
	s.mu.Lock()
	s.tail = append([]agent.Message(nil), messages...)
	s.mu.Unlock()
}

// SetAncestors atomically swaps the ancestor prefix, used when a new summary
// boundary is established.
func (s *Store) SetAncestors(messages []agent.Message) {
	s.mu.Lock()
	s.ancestors = append([]agent.Message(nil), messages...)
	s.mu.Unlock()
}

// All returns ancestors ++ tail as a fresh slice.
func (s *Store) All() []agent.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agent.Message, 0, len(s.ancestors)+len(s.tail))
	out = append(out, s.ancestors...)
	out = append(out, s.tail...)
	return out
}

// Tail returns a copy of the live tail.
func (s *Store) Tail() []agent.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]agent.Message(nil), s.tail...)
}

// Filtered returns ancestors ++ tail with non-display messages excluded,
// preserving relative order. Pure function of current state.
func (s *Store) Filtered() []agent.Message {
	all := s.All()
	out := make([]agent.Message, 0, len(all))
	for _, m := range all {
		if m.Visible() {
			out = append(out, m)
		}
	}
	return out
}

// Sendable returns ancestors ++ tail filtered to sendToLLM-eligible messages.
func (s *Store) Sendable() []agent.Message {
	all := s.All()
	out := make([]agent.Message, 0, len(all))
	for _, m := range all {
		if m.SentToModel() {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the final tail message, or false when the tail is empty.
func (s *Store) Last() (agent.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.tail) == 0 {
		return agent.Message{}, false
	}
	return s.tail[len(s.tail)-1], true
}

// DropLast removes the final tail message if present.
func (s *Store) DropLast() {
	s.mu.Lock()
	if len(s.tail) > 0 {
		s.tail = s.tail[:len(s.tail)-1]
	}
	s.mu.Unlock()
}

// Len reports the combined ancestor and tail length.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ancestors) + len(s.tail)
}

// Empty reports whether the store has no messages at all.
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// MergeAssistant applies an incremental assistant frame. Frames for the same
// assistant message id grow the existing message in arrival order; a trailing
// text block is extended in place, other blocks are appended. Anything else
// is appended as a new message.
func (s *Store) MergeAssistant(msg agent.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Role == agent.RoleAssistant && len(s.tail) > 0 {
		last := &s.tail[len(s.tail)-1]
		if last.Role == agent.RoleAssistant && last.ID == msg.ID {
			for _, c := range msg.Content {
				n := len(last.Content)
				if c.Type == agent.ContentText && n > 0 && last.Content[n-1].Type == agent.ContentText {
					last.Content[n-1].Text += c.Text
					continue
				}
				last.Content = append(last.Content, c)
			}
			return
		}
	}
	s.tail = append(s.tail, msg)
}
