// Package chat implements the conversational message-stream engine: it
// submits user input to the reasoning agent daemon, folds the incremental
// reply stream into the message history, and recovers cleanly from
// mid-stream cancellation.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/convo-sh/convo/internal/agent"
	"github.com/convo-sh/convo/internal/history"
	"github.com/convo-sh/convo/internal/notify"
	"github.com/convo-sh/convo/internal/session"
	"github.com/convo-sh/convo/internal/tokens"
	"github.com/convo-sh/convo/internal/wake"
)

// State is the stream session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateWaiting   State = "waiting_for_user_input"
	StateError     State = "error"
)

// summaryResetDelay is the settle time between a summary reset and the
// deferred append in Submit.
const summaryResetDelay = 150 * time.Millisecond

// Reasoner is the remote reasoning endpoint surface the engine depends on.
// *agent.Client implements it.
type Reasoner interface {
	Reply(ctx context.Context, req agent.ReplyRequest) (agent.Stream, error)
	SessionDetails(ctx context.Context, sessionID string) (*agent.SessionDetails, error)
}

// Options wire the engine's collaborators. Client and SessionID are
// required; everything else has a no-op default.
type Options struct {
	Client         Reasoner
	SessionID      string
	WorkingDir     string
	SystemPromptID string // opaque; resolved server-side

	Recorder history.Recorder
	Store    session.Store
	Bus      notify.Bus
	Wake     wake.Lock

	// OnDraft receives recovered input text after an interruption.
	OnDraft func(text string)
	// OnComplete fires after each successful stream completion.
	OnComplete func()
}

// Engine orchestrates the history store, stream session, interruption
// resolver, and metadata sync behind one mutex.
type Engine struct {
	mu sync.Mutex

	client         Reasoner
	hist           *history.Store
	store          session.Store
	bus            notify.Bus
	wakeLock       wake.Lock
	usage          *tokens.Sync
	onDraft        func(string)
	onComplete     func()
	sessionID      string
	workingDir     string
	systemPromptID string

	state     State
	gen       int // stream generation; stale generations are inert
	cancel    context.CancelFunc
	lastErr   error
	announced bool // new-session signal already emitted

	// resetTimer holds the deferred send scheduled after a summary reset;
	// pendingText is the submission it will deliver.
	resetTimer  *time.Timer
	pendingText string

	notesMu sync.Mutex
	notes   map[string][]ToolNotification
}

// New creates an idle engine.
func New(opts Options) *Engine {
	bus := opts.Bus
	if bus == nil {
		bus = notify.Nop{}
	}
	lock := opts.Wake
	if lock == nil {
		lock = wake.Nop{}
	}
	store := opts.Store
	if store == nil {
		store = &session.NoopStore{}
	}
	return &Engine{
		client:         opts.Client,
		hist:           history.NewStore(opts.Recorder),
		store:          store,
		bus:            bus,
		wakeLock:       lock,
		usage:          tokens.NewSync(),
		onDraft:        opts.OnDraft,
		onComplete:     opts.OnComplete,
		sessionID:      opts.SessionID,
		workingDir:     opts.WorkingDir,
		systemPromptID: opts.SystemPromptID,
		state:          StateIdle,
		notes:          make(map[string][]ToolNotification),
	}
}

// Hydrate seeds the history tail from persisted session messages. A hydrated
// session never announces itself as new.
func (e *Engine) Hydrate(messages []agent.Message) {
	e.mu.Lock()
	if len(messages) > 0 {
		e.announced = true
	}
	e.mu.Unlock()
	e.hist.Hydrate(messages)
}

// SetOnDraft replaces the recovered-draft sink. Safe to call before the
// first submission.
func (e *Engine) SetOnDraft(fn func(text string)) {
	e.mu.Lock()
	e.onDraft = fn
	e.mu.Unlock()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionID returns the session correlation id.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Err returns the last transport or daemon error, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// ClearError resets the error slot without tearing down the session.
func (e *Engine) ClearError() {
	e.mu.Lock()
	e.lastErr = nil
	if e.state == StateError {
		e.state = StateIdle
	}
	e.mu.Unlock()
}

// Filtered returns the displayable conversation.
func (e *Engine) Filtered() []agent.Message {
	return e.hist.Filtered()
}

// Append adds a fully formed message to the history. The very first message
// of a fresh session emits a new-session notification before forwarding.
func (e *Engine) Append(msg agent.Message) {
	e.mu.Lock()
	first := !e.announced && e.hist.Empty()
	if first {
		e.announced = true
	}
	e.mu.Unlock()

	if first {
		e.bus.Emit(notify.SignalNewSession)
	}
	e.hist.Append(msg)
	e.persist(msg)

	if msg.IsUser() && !msg.HasToolResponse() {
		e.recordUserTurn(msg)
	}
}

// recordUserTurn refreshes the session row a user submission affects: the
// turn count, the summary when this is the first prose, and active status.
// Best-effort, like all local persistence.
func (e *Engine) recordUserTurn(msg agent.Message) {
	ctx := context.Background()
	sess, err := e.store.Get(ctx, e.sessionID)
	if err != nil || sess == nil {
		return
	}
	sess.UserTurns++
	if sess.Summary == "" {
		sess.Summary = session.TruncateSummary(msg.Text())
	}
	sess.Status = session.StatusActive
	_ = e.store.Update(ctx, sess)
}

// AppendText wraps raw text into a user message and appends it.
func (e *Engine) AppendText(text string) {
	e.Append(agent.UserText(NewMessageID(), text))
}

// Submit appends text as a user message and opens a reply stream. Blank input
// is a no-op apart from releasing the wake lock. When onSummaryReset is
// non-nil the conversation carries an unconsumed summarized prefix: the reset
// runs first and the append is deferred briefly so it can settle.
func (e *Engine) Submit(text string, onSummaryReset func()) {
	if strings.TrimSpace(text) == "" {
		e.wakeLock.Release()
		return
	}

	e.wakeLock.Acquire()

	if onSummaryReset != nil {
		onSummaryReset()
		e.mu.Lock()
		e.pendingText = text
		e.resetTimer = time.AfterFunc(summaryResetDelay, func() {
			e.mu.Lock()
			if e.resetTimer == nil {
				// Stopped during the deferral; the draft went back to the input.
				e.mu.Unlock()
				return
			}
			e.resetTimer = nil
			e.pendingText = ""
			e.mu.Unlock()
			e.send(text)
		})
		e.mu.Unlock()
		return
	}
	e.send(text)
}

func (e *Engine) send(text string) {
	e.AppendText(text)
	e.bus.Emit(notify.SignalMessageSent)
	e.open()
}

// Stop cancels the in-flight exchange and runs interruption recovery. Safe to
// call when idle or errored; those are no-ops apart from releasing the wake
// lock.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.resetTimer != nil {
		// The submission is still sitting out its post-summary deferral:
		// cancel the send and hand the text back as a draft.
		e.resetTimer.Stop()
		e.resetTimer = nil
		text := e.pendingText
		e.pendingText = ""
		onDraft := e.onDraft
		e.mu.Unlock()

		e.wakeLock.Release()
		if onDraft != nil {
			onDraft(text)
		}
		return
	}
	if e.cancel == nil {
		e.mu.Unlock()
		e.wakeLock.Release()
		return
	}

	// Invalidate the session handle before recovery so a late frame cannot
	// re-introduce what recovery removes.
	e.cancel()
	e.cancel = nil
	e.gen++
	e.state = StateIdle

	res := resolveInterruption(e.hist)
	onDraft := e.onDraft
	e.mu.Unlock()

	e.wakeLock.Release()

	if res.synthesized != nil {
		e.persist(*res.synthesized)
	}
	_ = e.store.UpdateStatus(context.Background(), e.sessionID, session.StatusInterrupted)

	if res.draft != nil && onDraft != nil {
		onDraft(*res.draft)
	}
}

// NewMessageID returns a sortable opaque message id.
func NewMessageID() string {
	return ulid.Make().String()
}

// persist saves a message to the local session store, best-effort. The store
// allocates the sequence number.
func (e *Engine) persist(msg agent.Message) {
	_ = e.store.AddMessage(context.Background(), e.sessionID, session.NewMessage(e.sessionID, msg))
}
