package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/convo-sh/convo/internal/config"
	"github.com/convo-sh/convo/internal/export"
	"github.com/convo-sh/convo/internal/session"
)

var (
	sessionsLimit int
	exportFormat  string
	exportOutfile string
	deleteConfirm bool
)

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Max sessions to list")
	sessionsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Export format (md, yaml, json)")
	sessionsExportCmd.Flags().StringVarP(&exportOutfile, "output", "o", "", "Write to file instead of stdout")
	sessionsDeleteCmd.Flags().BoolVarP(&deleteConfirm, "yes", "y", false, "Skip confirmation")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsExportCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		summaries, err := store.List(cmd.Context(), session.ListOptions{Limit: sessionsLimit})
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no sessions stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMSGS\tTOKENS\tUPDATED\tSUMMARY")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				s.ID, s.MessageCount, s.TotalTokens,
				s.UpdatedAt.Format("2006-01-02 15:04"),
				session.TruncateSummary(s.Summary))
		}
		return w.Flush()
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session to markdown, yaml, or json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		doc, err := loadDocument(cmd.Context(), store, args[0])
		if err != nil {
			return err
		}

		exp, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOutfile != "" {
			f, err := os.Create(exportOutfile)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return exp.Export(doc, out)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if !deleteConfirm {
			fmt.Printf("delete session %s? [y/N] ", args[0])
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				return nil
			}
		}
		return store.Delete(cmd.Context(), args[0])
	},
}

func openStore() (session.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

func loadDocument(ctx context.Context, store session.Store, id string) (*export.Document, error) {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	msgs, err := store.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &export.Document{Session: *sess, Messages: msgs}, nil
}
