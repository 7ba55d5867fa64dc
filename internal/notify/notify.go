// Package notify carries fire-and-forget signals from the chat engine to the
// rendering layer. Signals have no payload beyond their name.
package notify

// Signal names an engine lifecycle event.
type Signal string

const (
	SignalNewSession     Signal = "new-session-started"
	SignalMessageSent    Signal = "message-sent"
	SignalStreamFinished Signal = "stream-finished"
)

// Bus delivers signals. Emit must never block the engine.
type Bus interface {
	Emit(Signal)
}

// Nop discards all signals.
type Nop struct{}

func (Nop) Emit(Signal) {}

// Func adapts a function to the Bus interface.
type Func func(Signal)

func (f Func) Emit(s Signal) { f(s) }

// Chan is a buffered, non-blocking bus. Signals are dropped when the consumer
// falls behind; delivery is best-effort by contract.
type Chan struct {
	ch chan Signal
}

// NewChan creates a Chan with the given buffer size.
func NewChan(size int) *Chan {
	if size <= 0 {
		size = 16
	}
	return &Chan{ch: make(chan Signal, size)}
}

func (c *Chan) Emit(s Signal) {
	select {
	case c.ch <- s:
	default:
	}
}

// C returns the receive side for consumers.
func (c *Chan) C() <-chan Signal {
	return c.ch
}
