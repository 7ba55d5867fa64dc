package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/convo-sh/convo/internal/agent"
	"github.com/convo-sh/convo/internal/chat"
	"github.com/convo-sh/convo/internal/config"
	"github.com/convo-sh/convo/internal/history"
	"github.com/convo-sh/convo/internal/notify"
	"github.com/convo-sh/convo/internal/session"
	chattui "github.com/convo-sh/convo/internal/tui/chat"
	"github.com/convo-sh/convo/internal/wake"
)

var (
	chatNew       bool
	chatResumeID  string
	chatServerURL string
)

func init() {
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Start a fresh session instead of resuming")
	chatCmd.Flags().StringVar(&chatResumeID, "resume", "", "Resume a specific session id")
	chatCmd.Flags().StringVar(&chatServerURL, "server", "", "Override daemon URL")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if chatServerURL != "" {
			cfg.Server.URL = chatServerURL
		}
		return runChat(cmd.Context(), cfg)
	},
}

func runChat(ctx context.Context, cfg *config.Config) error {
	store, err := session.NewStore(cfg.Sessions)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()
	logged := session.NewLoggingStore(store, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
	})

	sess, err := resolveSession(ctx, logged)
	if err != nil {
		return err
	}

	var recorder history.Recorder = history.NopRecorder{}
	if cfg.History.Enabled {
		path, err := cfg.InputHistoryPath()
		if err == nil {
			if r, err := history.NewFileRecorder(path); err == nil {
				recorder = r
			}
		}
	}

	bus := notify.NewChan(32)
	engine := chat.New(chat.Options{
		Client:         agent.NewClient(cfg.Server.URL, cfg.Server.SecretKey),
		SessionID:      sess.ID,
		WorkingDir:     cfg.WorkingDir,
		SystemPromptID: cfg.SystemPrompt,
		Recorder:       recorder,
		Store:          logged,
		Bus:            bus,
		Wake:           wake.Nop{},
	})

	// Hydrate from persisted messages when resuming.
	if msgs, err := logged.GetMessages(ctx, sess.ID); err == nil && len(msgs) > 0 {
		bodies := make([]agent.Message, 0, len(msgs))
		for _, m := range msgs {
			bodies = append(bodies, m.Body)
		}
		engine.Hydrate(bodies)
	}

	model, drafts := chattui.New(engine, bus)
	engine.SetOnDraft(func(text string) {
		select {
		case drafts <- text:
		default:
		}
	})

	_ = logged.SetCurrent(ctx, sess.ID)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI: %w", err)
	}
	return nil
}

// resolveSession picks the session to open: an explicit id, the current one,
// or a fresh session.
func resolveSession(ctx context.Context, store session.Store) (*session.Session, error) {
	if chatResumeID != "" {
		sess, err := store.Get(ctx, chatResumeID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("session not found: %s", chatResumeID)
		}
		return sess, nil
	}

	if !chatNew {
		if sess, err := store.GetCurrent(ctx); err == nil && sess != nil {
			return sess, nil
		}
	}

	sess := &session.Session{ID: session.NewID()}
	if err := store.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
