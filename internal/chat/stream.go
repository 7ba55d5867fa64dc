package chat

import (
	"context"
	"io"

	"github.com/convo-sh/convo/internal/agent"
	"github.com/convo-sh/convo/internal/notify"
	"github.com/convo-sh/convo/internal/session"
	"github.com/convo-sh/convo/internal/tokens"
)

// open starts a new stream session generation. A prior in-flight session is
// superseded: its handle is cancelled and its late events become inert.
func (e *Engine) open() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	gen := e.gen
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.state = StateStreaming
	e.lastErr = nil
	req := agent.ReplyRequest{
		Messages:       e.hist.Sendable(),
		SessionID:      e.sessionID,
		WorkingDir:     e.workingDir,
		SystemPromptID: e.systemPromptID,
	}
	e.mu.Unlock()

	go e.run(ctx, gen, req)
}

// run consumes one reply stream to completion.
func (e *Engine) run(ctx context.Context, gen int, req agent.ReplyRequest) {
	stream, err := e.client.Reply(ctx, req)
	if err != nil {
		e.finishError(gen, err)
		return
	}
	defer stream.Close()

	waiting := false
	var received []agent.Message
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled by Stop; recovery already ran there.
				return
			}
			e.finishError(gen, err)
			return
		}

		switch event.Type {
		case agent.EventMessage, agent.EventConfirmation:
			if event.Message == nil {
				continue
			}
			if !e.apply(gen, *event.Message) {
				return // superseded
			}
			received = append(received, *event.Message)
			if event.Type == agent.EventConfirmation {
				waiting = true
			}
		case agent.EventFinish:
			if event.Usage != nil {
				e.usage.SetAuthoritative(*event.Usage)
			}
		}
	}

	e.finish(gen, waiting, received)
}

// apply folds one incoming frame into the history. Returns false when this
// generation has been superseded.
func (e *Engine) apply(gen int, msg agent.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return false
	}
	e.hist.MergeAssistant(msg)
	return true
}

// finish handles normal stream termination.
func (e *Engine) finish(gen int, waiting bool, received []agent.Message) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.cancel = nil
	if waiting {
		e.state = StateWaiting
	} else {
		e.state = StateIdle
	}
	e.mu.Unlock()

	e.wakeLock.Release()

	e.persistReceived(received)
	e.syncMetadata()
	_ = e.store.UpdateStatus(context.Background(), e.sessionID, session.StatusComplete)

	e.bus.Emit(notify.SignalStreamFinished)
	if e.onComplete != nil {
		e.onComplete()
	}
}

// persistReceived saves this turn's messages in their merged form, one row
// per distinct message id, so hydration replays what the user saw rather than
// the raw frames.
func (e *Engine) persistReceived(received []agent.Message) {
	seen := make(map[string]bool, len(received))
	tail := e.hist.Tail()
	for _, frame := range received {
		if seen[frame.ID] {
			continue
		}
		seen[frame.ID] = true
		for i := len(tail) - 1; i >= 0; i-- {
			if tail[i].ID == frame.ID {
				e.persist(tail[i])
				break
			}
		}
	}
}

// finishError records a transport or daemon failure in the error slot.
func (e *Engine) finishError(gen int, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.cancel = nil
	e.state = StateError
	e.lastErr = err
	e.mu.Unlock()

	e.wakeLock.Release()
	_ = e.store.UpdateStatus(context.Background(), e.sessionID, session.StatusError)
}

// syncMetadata refreshes the local estimate and, when reachable, the
// authoritative counts from the session-details endpoint.
func (e *Engine) syncMetadata() {
	e.usage.SetEstimate(tokens.Conversation(e.hist.Filtered()))

	details, err := e.client.SessionDetails(context.Background(), e.sessionID)
	if err == nil && details != nil {
		e.usage.SetAuthoritative(details.Usage)
		_ = e.store.UpdateTokens(context.Background(), e.sessionID,
			details.Usage.InputTokens, details.Usage.OutputTokens, details.Usage.TotalTokens)
	}
}

// TokenCounts returns the counts to display, recomputing the local estimate
// from the current conversation on each read.
func (e *Engine) TokenCounts() tokens.Usage {
	e.usage.SetEstimate(tokens.Conversation(e.hist.Filtered()))
	return e.usage.Displayed()
}
