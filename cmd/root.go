package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "convo",
	Short: "Terminal chat client for a reasoning agent daemon",
	Long: `convo streams conversations against a local or remote reasoning agent.

Examples:
  convo chat                        # start or resume a chat session
  convo chat --new                  # force a fresh session
  convo sessions list               # list stored sessions
  convo sessions export <id> -f md  # export a session as markdown`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
