package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ftp-sentinel/internal/journal"
)

var (
	historyLimit  int
	historyAlerts bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		jrnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return eris.Wrap(err, "open journal")
		}
		defer jrnl.Close()
		if err := jrnl.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate journal")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if historyAlerts {
			recs, err := jrnl.RecentAlerts(ctx, historyLimit)
			if err != nil {
				return eris.Wrap(err, "list alerts")
			}
			return enc.Encode(recs)
		}

		recs, err := jrnl.RecentChecks(ctx, historyLimit)
		if err != nil {
			return eris.Wrap(err, "list checks")
		}
		return enc.Encode(recs)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum entries to print")
	historyCmd.Flags().BoolVar(&historyAlerts, "alerts", false, "print sent alerts instead of check cycles")
	rootCmd.AddCommand(historyCmd)
}
