package tokens

import (
	"sync"

	"github.com/convo-sh/convo/internal/agent"
)

// Sync reconciles locally estimated counts with authoritative counts from the
// daemon. The two sources are never blended: once an authoritative value is
// present (including a legitimate zero) it completely overrides the estimate.
type Sync struct {
	mu            sync.RWMutex
	estimate      Count
	authoritative *agent.TokenUsage
}

// NewSync returns a Sync with no counts recorded.
func NewSync() *Sync {
	return &Sync{}
}

// SetEstimate records the latest local estimate.
func (s *Sync) SetEstimate(c Count) {
	s.mu.Lock()
	s.estimate = c
	s.mu.Unlock()
}

// SetAuthoritative records daemon-reported usage, replacing any prior value.
func (s *Sync) SetAuthoritative(u agent.TokenUsage) {
	s.mu.Lock()
	s.authoritative = &u
	s.mu.Unlock()
}

// Reset clears both sources, used when switching sessions.
func (s *Sync) Reset() {
	s.mu.Lock()
	s.estimate = Count{}
	s.authoritative = nil
	s.mu.Unlock()
}

// Usage describes the counts to display and where they came from.
type Usage struct {
	InputTokens   int
	OutputTokens  int
	TotalTokens   int
	Authoritative bool
}

// Displayed returns the counts the UI should show: authoritative when
// available, the local estimate otherwise.
func (s *Sync) Displayed() Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.authoritative != nil {
		return Usage{
			InputTokens:   s.authoritative.InputTokens,
			OutputTokens:  s.authoritative.OutputTokens,
			TotalTokens:   s.authoritative.TotalTokens,
			Authoritative: true,
		}
	}
	return Usage{
		InputTokens:  s.estimate.User,
		OutputTokens: s.estimate.Assistant,
		TotalTokens:  s.estimate.Total(),
	}
}
