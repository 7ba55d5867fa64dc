// Package tokens tracks conversation token counts from two sources: a cheap
// local estimate and authoritative counts reported by the daemon.
package tokens

import "github.com/convo-sh/convo/internal/agent"

// charsPerToken is the rough ratio used for local estimation.
const charsPerToken = 4

// Estimate approximates the token count of text, rounding up.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Count holds per-role estimated token totals.
type Count struct {
	User      int
	Assistant int
}

// Total returns the combined count.
func (c Count) Total() int {
	return c.User + c.Assistant
}

// Conversation sums text estimates over the visible conversation, split by
// role. Tool payloads are excluded; only text blocks count toward estimates.
func Conversation(messages []agent.Message) Count {
	var c Count
	for _, m := range messages {
		if !m.Visible() {
			continue
		}
		n := Estimate(m.Text())
		switch m.Role {
		case agent.RoleUser:
			c.User += n
		case agent.RoleAssistant:
			c.Assistant += n
		}
	}
	return c
}
