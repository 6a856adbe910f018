package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bankbot/aicore/internal/logging"
	"github.com/bankbot/aicore/internal/store"
)

// NewLogCmd constructs the `aicore log` command, which prints recently
// answered queries from the local answer log.
func NewLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recently answered queries",
		Long: `Print the most recent entries from the local answer log.

Every answer the service produces — fallbacks included — is recorded in a
SQLite database (AICORE_ANSWER_DB, default ~/.aicore/answers.db).

Examples:
  aicore log
  aicore log --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			dbPath := os.Getenv("AICORE_ANSWER_DB")
			if dbPath == "" || dbPath == "disabled" {
				var err error
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("log: %w", err)
				}
			}

			answers, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("log: open %s: %w", dbPath, err)
			}
			defer answers.Close()

			entries, err := answers.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no answers recorded yet")
				return nil
			}

			log.Debug("answer log read", "path", dbPath, "entries", len(entries))
			for _, e := range entries {
				fmt.Printf("%s  [%s/%s]\n  Q: %s\n  A: %s\n\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Collection, e.Model, e.Query, e.Answer)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of entries to print")

	return cmd
}
