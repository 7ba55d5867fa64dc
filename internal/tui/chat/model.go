// Package chat is the terminal renderer for the message-stream engine. It
// owns presentation only; all conversation state lives in the engine.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/convo-sh/convo/internal/chat"
	"github.com/convo-sh/convo/internal/notify"
)

// renderInterval drives redraws while a stream is growing the tail message.
const renderInterval = 100 * time.Millisecond

type (
	signalMsg notify.Signal
	tickMsg   time.Time
)

// Model is the chat TUI model.
type Model struct {
	width  int
	height int

	textarea textarea.Model
	spinner  spinner.Model
	keyMap   KeyMap

	engine *chat.Engine
	bus    *notify.Chan
	// drafts receives recovered input text from the engine's interruption
	// resolver; consumed right after Stop.
	drafts chan string

	// Input history navigation
	histIndex int // -1 = live input
	histSaved string

	quitting bool
}

// New wires a model to an engine. The returned drafts channel must be set as
// the engine's OnDraft sink before the first submission.
func New(engine *chat.Engine, bus *notify.Chan) (*Model, chan string) {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	drafts := make(chan string, 1)
	return &Model{
		textarea:  ta,
		spinner:   sp,
		keyMap:    DefaultKeyMap(),
		engine:    engine,
		bus:       bus,
		drafts:    drafts,
		histIndex: -1,
	}, drafts
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitSignal())
}

// waitSignal forwards engine notifications into the bubbletea loop.
func (m *Model) waitSignal() tea.Cmd {
	return func() tea.Msg {
		return signalMsg(<-m.bus.C())
	}
}

func tick() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(msg.Width - 4)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case signalMsg:
		var cmd tea.Cmd
		if notify.Signal(msg) == notify.SignalMessageSent {
			cmd = tick()
		}
		return m, tea.Batch(cmd, m.waitSignal())

	case tickMsg:
		if m.engine.State() == chat.StateStreaming {
			return m, tick()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.engine.Stop()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Send):
		if m.engine.State() == chat.StateStreaming {
			return m, nil // submit disabled while streaming
		}
		text := m.textarea.Value()
		m.textarea.Reset()
		m.histIndex = -1
		m.engine.Submit(text, nil)
		return m, tea.Batch(m.spinner.Tick, tick())

	case key.Matches(msg, m.keyMap.Newline):
		m.textarea.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keyMap.Cancel):
		m.engine.Stop()
		// Restore the recovered draft, if the resolver produced one.
		select {
		case draft := <-m.drafts:
			m.textarea.SetValue(draft)
		default:
		}
		return m, nil

	case key.Matches(msg, m.keyMap.HistoryUp):
		return m.navigateHistory(1), nil

	case key.Matches(msg, m.keyMap.HistoryDown):
		return m.navigateHistory(-1), nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// navigateHistory walks prior inputs via the engine's command history view.
func (m *Model) navigateHistory(dir int) tea.Model {
	history := m.engine.CommandHistory()
	if len(history) == 0 {
		return m
	}
	if m.histIndex == -1 && dir > 0 {
		m.histSaved = m.textarea.Value()
	}
	next := m.histIndex + dir
	switch {
	case next < -1:
		next = -1
	case next >= len(history):
		next = len(history) - 1
	}
	m.histIndex = next
	if next == -1 {
		m.textarea.SetValue(m.histSaved)
	} else {
		m.textarea.SetValue(history[next])
	}
	m.textarea.CursorEnd()
	return m
}
