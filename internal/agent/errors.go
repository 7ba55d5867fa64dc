package agent

import (
	"errors"
	"fmt"
)

// Error is a transport or daemon-reported failure. TokenLimit marks the
// flagged variant that requires summarization recovery instead of a generic
// error banner.
type Error struct {
	Message    string
	StatusCode int
	TokenLimit bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("agent: %s (status %d)", e.Message, e.StatusCode)
	}
	return "agent: " + e.Message
}

// IsTokenLimit reports whether err (or anything it wraps) is a token limit error.
func IsTokenLimit(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.TokenLimit
}
