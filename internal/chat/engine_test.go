package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/convo-sh/convo/internal/agent"
	"github.com/convo-sh/convo/internal/notify"
	"github.com/convo-sh/convo/internal/session"
	"github.com/convo-sh/convo/internal/wake"
)

// fakeStore records session metadata writes; everything else falls through to
// the no-op store.
type fakeStore struct {
	session.NoopStore
	mu       sync.Mutex
	sess     *session.Session
	statuses []session.Status
	added    []session.Message
	onAdd    func()
}

func (f *fakeStore) Get(ctx context.Context, id string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil || f.sess.ID != id {
		return nil, nil
	}
	snapshot := *f.sess
	return &snapshot, nil
}

func (f *fakeStore) Update(ctx context.Context, sess *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *sess
	f.sess = &snapshot
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status session.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if f.sess != nil {
		f.sess.Status = status
	}
	return nil
}

func (f *fakeStore) AddMessage(ctx context.Context, sessionID string, msg *session.Message) error {
	f.mu.Lock()
	f.added = append(f.added, *msg)
	onAdd := f.onAdd
	f.mu.Unlock()
	if onAdd != nil {
		onAdd()
	}
	return nil
}

func (f *fakeStore) current(t *testing.T) session.Session {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		t.Fatal("no session recorded")
	}
	return *f.sess
}

func (f *fakeStore) lastStatus() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

// scriptedStream yields its events in order, then either ends the stream,
// fails with err, or blocks until the request context is cancelled.
type scriptedStream struct {
	ctx    context.Context
	events []agent.Event
	index  int
	err    error
	block  bool
}

func (s *scriptedStream) Recv() (agent.Event, error) {
	if s.index < len(s.events) {
		event := s.events[s.index]
		s.index++
		return event, nil
	}
	if s.block {
		<-s.ctx.Done()
		return agent.Event{}, s.ctx.Err()
	}
	if s.err != nil {
		return agent.Event{}, s.err
	}
	return agent.Event{}, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

type fakeReasoner struct {
	mu      sync.Mutex
	replyFn func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error)
	calls   []agent.ReplyRequest

	details    *agent.SessionDetails
	detailsErr error
}

func (f *fakeReasoner) Reply(ctx context.Context, req agent.ReplyRequest) (agent.Stream, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	call := len(f.calls) - 1
	f.mu.Unlock()
	return f.replyFn(ctx, call, req)
}

func (f *fakeReasoner) SessionDetails(ctx context.Context, sessionID string) (*agent.SessionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details, nil
}

func (f *fakeReasoner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingBus struct {
	mu      sync.Mutex
	signals []notify.Signal
}

func (b *recordingBus) Emit(s notify.Signal) {
	b.mu.Lock()
	b.signals = append(b.signals, s)
	b.mu.Unlock()
}

func (b *recordingBus) count(s notify.Signal) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, got := range b.signals {
		if got == s {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assistantFrame(id, text string) agent.Event {
	msg := agent.AssistantText(id, text)
	return agent.Event{Type: agent.EventMessage, Message: &msg}
}

func TestSubmitBlankIsNoOp(t *testing.T) {
	client := &fakeReasoner{detailsErr: errors.New("unreachable")}
	lock := &wake.Counting{}
	engine := New(Options{Client: client, SessionID: "s1", Wake: lock})

	engine.Submit("   \n\t", nil)

	if got := client.callCount(); got != 0 {
		t.Fatalf("expected no reply calls, got %d", got)
	}
	if got := len(engine.Filtered()); got != 0 {
		t.Fatalf("expected empty conversation, got %d messages", got)
	}
	if lock.Held() {
		t.Fatal("wake lock should not be held after blank submit")
	}
}

func TestSubmitStreamsAndMergesReply(t *testing.T) {
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx, events: []agent.Event{
				assistantFrame("a1", "Hel"),
				assistantFrame("a1", "lo"),
				{Type: agent.EventFinish, Usage: &agent.TokenUsage{InputTokens: 5, OutputTokens: 7, TotalTokens: 12}},
			}}, nil
		},
	}
	lock := &wake.Counting{}
	bus := &recordingBus{}
	done := make(chan struct{})
	engine := New(Options{
		Client: client, SessionID: "s1", Wake: lock, Bus: bus,
		OnComplete: func() { close(done) },
	})

	engine.Submit("hi", nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never completed")
	}

	msgs := engine.Filtered()
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant message, got %d", len(msgs))
	}
	if msgs[1].Role != agent.RoleAssistant || msgs[1].Text() != "Hello" {
		t.Fatalf("expected merged assistant text %q, got %q", "Hello", msgs[1].Text())
	}
	if len(msgs[1].Content) != 1 {
		t.Fatalf("incremental frames should extend one text block, got %d blocks", len(msgs[1].Content))
	}
	if got := engine.State(); got != StateIdle {
		t.Fatalf("expected idle after completion, got %s", got)
	}
	if lock.Held() {
		t.Fatal("wake lock still held after completion")
	}

	usage := engine.TokenCounts()
	if !usage.Authoritative || usage.TotalTokens != 12 {
		t.Fatalf("expected authoritative total 12, got %+v", usage)
	}

	if bus.count(notify.SignalNewSession) != 1 {
		t.Fatalf("expected one new-session signal, got %d", bus.count(notify.SignalNewSession))
	}
	if bus.count(notify.SignalMessageSent) != 1 {
		t.Fatalf("expected one message-sent signal, got %d", bus.count(notify.SignalMessageSent))
	}
	if bus.count(notify.SignalStreamFinished) != 1 {
		t.Fatalf("expected one stream-finished signal, got %d", bus.count(notify.SignalStreamFinished))
	}
}

func TestSubmitSendsEligibleHistory(t *testing.T) {
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx}, nil
		},
	}
	done := make(chan struct{})
	engine := New(Options{Client: client, SessionID: "s1", OnComplete: func() { close(done) }})

	hidden := false
	engine.Append(agent.Message{
		ID: "m1", Role: agent.RoleUser,
		Content:   []agent.Content{{Type: agent.ContentText, Text: "kept locally"}},
		SendToLLM: &hidden,
	})
	engine.Submit("question", nil)
	<-done

	client.mu.Lock()
	req := client.calls[0]
	client.mu.Unlock()
	if len(req.Messages) != 1 || req.Messages[0].Text() != "question" {
		t.Fatalf("sendToLLM=false message leaked into request: %+v", req.Messages)
	}
	if req.SessionID != "s1" {
		t.Fatalf("expected session id s1, got %q", req.SessionID)
	}
}

func TestConfirmationEntersWaitingState(t *testing.T) {
	confirm := agent.Message{
		ID:   "c1",
		Role: agent.RoleUser,
		Content: []agent.Content{{
			Type:         agent.ContentToolConfirmationRequest,
			Confirmation: &agent.ToolConfirmation{ID: "t1", Name: "shell"},
		}},
	}
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx, events: []agent.Event{
				{Type: agent.EventConfirmation, Message: &confirm},
			}}, nil
		},
	}
	done := make(chan struct{})
	engine := New(Options{Client: client, SessionID: "s1", OnComplete: func() { close(done) }})

	engine.Submit("run it", nil)
	<-done

	if got := engine.State(); got != StateWaiting {
		t.Fatalf("expected waiting_for_user_input, got %s", got)
	}
}

func TestReplyFailureSetsErrorState(t *testing.T) {
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return nil, &agent.Error{Message: "connection refused"}
		},
	}
	lock := &wake.Counting{}
	engine := New(Options{Client: client, SessionID: "s1", Wake: lock})

	engine.Submit("hi", nil)
	waitFor(t, "error state", func() bool { return engine.State() == StateError })

	if engine.Err() == nil {
		t.Fatal("expected error recorded")
	}
	if lock.Held() {
		t.Fatal("wake lock still held after failure")
	}

	// The failed turn stays in history; the user can retry or stop.
	if got := len(engine.Filtered()); got != 1 {
		t.Fatalf("expected submitted message retained, got %d", got)
	}

	engine.ClearError()
	if engine.Err() != nil || engine.State() != StateIdle {
		t.Fatal("ClearError should reset error state to idle")
	}
}

func TestMidStreamErrorSetsErrorState(t *testing.T) {
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx,
				events: []agent.Event{assistantFrame("a1", "partial")},
				err:    &agent.Error{Message: "model blew up", TokenLimit: true},
			}, nil
		},
	}
	engine := New(Options{Client: client, SessionID: "s1"})

	engine.Submit("hi", nil)
	waitFor(t, "error state", func() bool { return engine.State() == StateError })

	if !agent.IsTokenLimit(engine.Err()) {
		t.Fatalf("expected token-limit error, got %v", engine.Err())
	}
}

func TestStopRecoversUnansweredDraft(t *testing.T) {
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx, block: true}, nil
		},
	}
	lock := &wake.Counting{}
	drafts := make(chan string, 1)
	engine := New(Options{
		Client: client, SessionID: "s1", Wake: lock,
		OnDraft: func(text string) { drafts <- text },
	})

	engine.Submit("hello there", nil)
	waitFor(t, "stream open", func() bool { return client.callCount() == 1 })

	engine.Stop()

	select {
	case draft := <-drafts:
		if draft != "hello there" {
			t.Fatalf("expected recovered draft %q, got %q", "hello there", draft)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("draft never delivered")
	}

	if got := len(engine.Filtered()); got != 0 {
		t.Fatalf("expected unanswered message removed, got %d messages", got)
	}
	if engine.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %s", engine.State())
	}
	if lock.Held() {
		t.Fatal("wake lock still held after stop")
	}
}

func TestStopClosesDanglingToolCalls(t *testing.T) {
	toolMsg := agent.Message{
		ID:   "a1",
		Role: agent.RoleAssistant,
		Content: []agent.Content{
			{Type: agent.ContentText, Text: "let me check"},
			{Type: agent.ContentToolRequest, ToolRequest: &agent.ToolRequest{ID: "call-a", Name: "shell"}},
			{Type: agent.ContentToolRequest, ToolRequest: &agent.ToolRequest{ID: "call-b", Name: "read"}},
		},
	}
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx,
				events: []agent.Event{{Type: agent.EventMessage, Message: &toolMsg}},
				block:  true,
			}, nil
		},
	}
	drafted := false
	engine := New(Options{
		Client: client, SessionID: "s1",
		OnDraft: func(string) { drafted = true },
	})

	engine.Submit("run it", nil)
	waitFor(t, "tool frame applied", func() bool { return len(engine.Filtered()) == 2 })

	engine.Stop()

	msgs := engine.Filtered()
	if len(msgs) != 3 {
		t.Fatalf("expected synthesized closing message, got %d messages", len(msgs))
	}
	closing := msgs[2]
	if closing.Role != agent.RoleUser {
		t.Fatalf("closing message should carry the user role, got %s", closing.Role)
	}
	if len(closing.Content) != 2 {
		t.Fatalf("expected one response per dangling call, got %d", len(closing.Content))
	}
	for i, id := range []string{"call-a", "call-b"} {
		tr := closing.Content[i].ToolResponse
		if tr == nil || tr.ID != id || !tr.IsError || tr.Output != interruptionNotice {
			t.Fatalf("block %d: expected error response for %s, got %+v", i, id, closing.Content[i])
		}
	}
	if drafted {
		t.Fatal("no draft should be recovered when tool calls are closed")
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	lock := &wake.Counting{}
	engine := New(Options{Client: &fakeReasoner{}, SessionID: "s1", Wake: lock})

	engine.AppendText("already answered")
	engine.Stop()

	if got := len(engine.Filtered()); got != 1 {
		t.Fatalf("idle stop must not touch history, got %d messages", got)
	}
}

func TestLateFramesAfterStopAreInert(t *testing.T) {
	release := make(chan struct{})
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &lateStream{release: release}, nil
		},
	}
	engine := New(Options{Client: client, SessionID: "s1"})

	engine.Submit("hi", nil)
	waitFor(t, "stream open", func() bool { return client.callCount() == 1 })

	engine.Stop()
	close(release) // frame arrives after the generation was invalidated

	time.Sleep(50 * time.Millisecond)
	if got := len(engine.Filtered()); got != 0 {
		t.Fatalf("late frame re-introduced content: %d messages", got)
	}
}

// lateStream delivers its only frame after release is closed, ignoring
// cancellation, to model a frame that was already in flight at stop time.
type lateStream struct {
	release chan struct{}
	sent    bool
}

func (s *lateStream) Recv() (agent.Event, error) {
	if s.sent {
		return agent.Event{}, io.EOF
	}
	<-s.release
	s.sent = true
	return assistantFrame("a9", "too late"), nil
}

func (s *lateStream) Close() error { return nil }

func TestNewSessionAnnouncedExactlyOnce(t *testing.T) {
	bus := &recordingBus{}
	engine := New(Options{Client: &fakeReasoner{}, SessionID: "s1", Bus: bus})

	engine.AppendText("first")
	engine.AppendText("second")

	if got := bus.count(notify.SignalNewSession); got != 1 {
		t.Fatalf("expected one new-session signal, got %d", got)
	}
}

func TestHydratedSessionIsNotAnnounced(t *testing.T) {
	bus := &recordingBus{}
	engine := New(Options{Client: &fakeReasoner{}, SessionID: "s1", Bus: bus})

	engine.Hydrate([]agent.Message{agent.UserText("m1", "earlier")})
	engine.AppendText("and now")

	if got := bus.count(notify.SignalNewSession); got != 0 {
		t.Fatalf("resumed session must not announce itself, got %d signals", got)
	}
}

func TestSubmitDefersAfterSummaryReset(t *testing.T) {
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx}, nil
		},
	}
	engine := New(Options{Client: client, SessionID: "s1"})

	resetAt := time.Time{}
	engine.Submit("post-summary question", func() { resetAt = time.Now() })

	if resetAt.IsZero() {
		t.Fatal("summary reset callback not invoked")
	}
	if client.callCount() != 0 {
		t.Fatal("send must be deferred until the reset settles")
	}

	waitFor(t, "deferred send", func() bool { return client.callCount() == 1 })
	if elapsed := time.Since(resetAt); elapsed < summaryResetDelay {
		t.Fatalf("send fired after %v, before the settle delay", elapsed)
	}
}

func TestUserSubmissionsUpdateSessionMetadata(t *testing.T) {
	store := &fakeStore{sess: &session.Session{ID: "s1"}}
	engine := New(Options{Client: &fakeReasoner{}, SessionID: "s1", Store: store})

	engine.AppendText("summarize my quarterly report")
	engine.Append(agent.AssistantText("a1", "done"))
	engine.AppendText("now make it shorter")

	sess := store.current(t)
	if sess.UserTurns != 2 {
		t.Fatalf("expected 2 user turns, got %d", sess.UserTurns)
	}
	if sess.Summary != "summarize my quarterly report" {
		t.Fatalf("summary should be the first user message, got %q", sess.Summary)
	}
	if sess.Status != session.StatusActive {
		t.Fatalf("expected active status, got %s", sess.Status)
	}
}

func TestSynthesizedClosuresDoNotCountAsTurns(t *testing.T) {
	store := &fakeStore{sess: &session.Session{ID: "s1"}}
	engine := New(Options{Client: &fakeReasoner{}, SessionID: "s1", Store: store})

	engine.Append(agent.Message{
		ID:      "m1",
		Role:    agent.RoleUser,
		Content: []agent.Content{agent.ErrorToolResponse("call-a", interruptionNotice)},
	})

	store.mu.Lock()
	turns := store.sess.UserTurns
	store.mu.Unlock()
	if turns != 0 {
		t.Fatalf("tool-closing messages are not user turns, got %d", turns)
	}
}

func TestStopMarksSessionInterrupted(t *testing.T) {
	store := &fakeStore{sess: &session.Session{ID: "s1"}}
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx, block: true}, nil
		},
	}
	engine := New(Options{Client: client, SessionID: "s1", Store: store})

	engine.Submit("summarize my quarterly report", nil)
	waitFor(t, "stream open", func() bool { return client.callCount() == 1 })
	engine.Stop()

	sess := store.current(t)
	if sess.Status != session.StatusInterrupted {
		t.Fatalf("expected interrupted status after stop, got %s", sess.Status)
	}
	if sess.Summary != "summarize my quarterly report" || sess.UserTurns != 1 {
		t.Fatalf("turn metadata lost: %+v", sess)
	}
}

func TestCompletionMarksSessionComplete(t *testing.T) {
	store := &fakeStore{sess: &session.Session{ID: "s1"}}
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx, events: []agent.Event{assistantFrame("a1", "done")}}, nil
		},
	}
	done := make(chan struct{})
	engine := New(Options{Client: client, SessionID: "s1", Store: store, OnComplete: func() { close(done) }})

	engine.Submit("hi", nil)
	<-done

	if got := store.lastStatus(); got != session.StatusComplete {
		t.Fatalf("expected complete status after the exchange, got %s", got)
	}
}

func TestStreamFailureMarksSessionError(t *testing.T) {
	store := &fakeStore{sess: &session.Session{ID: "s1"}}
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return nil, &agent.Error{Message: "connection refused"}
		},
	}
	engine := New(Options{Client: client, SessionID: "s1", Store: store})

	engine.Submit("hi", nil)
	waitFor(t, "error status", func() bool { return store.lastStatus() == session.StatusError })
}

func TestStopDuringSummaryResetCancelsDeferredSend(t *testing.T) {
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx}, nil
		},
	}
	lock := &wake.Counting{}
	drafts := make(chan string, 1)
	engine := New(Options{
		Client: client, SessionID: "s1", Wake: lock,
		OnDraft: func(text string) { drafts <- text },
	})

	engine.Submit("post-summary question", func() {})
	engine.Stop()

	select {
	case draft := <-drafts:
		if draft != "post-summary question" {
			t.Fatalf("expected deferred text back as draft, got %q", draft)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("draft never delivered")
	}

	time.Sleep(2*summaryResetDelay + 50*time.Millisecond)
	if got := client.callCount(); got != 0 {
		t.Fatalf("deferred send fired after stop, %d calls", got)
	}
	if got := len(engine.Filtered()); got != 0 {
		t.Fatalf("deferred append fired after stop, %d messages", got)
	}
	if lock.Held() {
		t.Fatal("wake lock still held after stopping a deferred send")
	}
}

func TestStopPersistsClosureWithoutHoldingEngineLock(t *testing.T) {
	toolMsg := agent.Message{
		ID:   "a1",
		Role: agent.RoleAssistant,
		Content: []agent.Content{{
			Type:        agent.ContentToolRequest,
			ToolRequest: &agent.ToolRequest{ID: "call-a", Name: "shell"},
		}},
	}
	client := &fakeReasoner{
		detailsErr: errors.New("unreachable"),
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx,
				events: []agent.Event{{Type: agent.EventMessage, Message: &toolMsg}},
				block:  true,
			}, nil
		},
	}
	store := &fakeStore{sess: &session.Session{ID: "s1"}}
	var engine *Engine
	// A store that reads engine state mid-write deadlocks if persistence runs
	// under the engine mutex.
	store.onAdd = func() { _ = engine.State() }
	engine = New(Options{Client: client, SessionID: "s1", Store: store})

	engine.Submit("run it", nil)
	waitFor(t, "tool frame applied", func() bool { return len(engine.Filtered()) == 2 })
	engine.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	found := false
	for _, msg := range store.added {
		if msg.Body.HasToolResponse() {
			found = true
		}
	}
	if !found {
		t.Fatal("synthesized closure was not persisted")
	}
}

func TestSessionDetailsOverrideEstimate(t *testing.T) {
	client := &fakeReasoner{
		details: &agent.SessionDetails{
			SessionID: "s1",
			Usage:     agent.TokenUsage{InputTokens: 0, OutputTokens: 0, TotalTokens: 0},
		},
		replyFn: func(ctx context.Context, call int, req agent.ReplyRequest) (agent.Stream, error) {
			return &scriptedStream{ctx: ctx, events: []agent.Event{
				assistantFrame("a1", "a perfectly ordinary answer of some length"),
			}}, nil
		},
	}
	done := make(chan struct{})
	engine := New(Options{Client: client, SessionID: "s1", OnComplete: func() { close(done) }})

	engine.Submit("hi", nil)
	<-done

	// A zero from the daemon is authoritative and beats a non-zero estimate.
	usage := engine.TokenCounts()
	if !usage.Authoritative || usage.TotalTokens != 0 {
		t.Fatalf("expected authoritative zero usage, got %+v", usage)
	}
}
