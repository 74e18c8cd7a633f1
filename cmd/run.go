package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ftp-sentinel/internal/config"
	"github.com/sells-group/ftp-sentinel/internal/fetcher"
	"github.com/sells-group/ftp-sentinel/internal/journal"
	"github.com/sells-group/ftp-sentinel/internal/mailer"
	"github.com/sells-group/ftp-sentinel/internal/monitor"
	"github.com/sells-group/ftp-sentinel/internal/server"
)

var runNoStart bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor and the local status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		settings := config.NewManager(cfg)

		var (
			checkJournal monitor.CheckJournal
			alertJournal monitor.AlertJournal
			history      server.History
		)
		if cfg.Journal.Enabled {
			jrnl, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return eris.Wrap(err, "open journal")
			}
			defer jrnl.Close()
			if err := jrnl.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate journal")
			}
			checkJournal, alertJournal, history = jrnl, jrnl, jrnl
		}

		state := monitor.NewState()
		sender := mailer.NewSender(settings)
		tracker := monitor.NewTracker(settings, state, sender, alertJournal)
		client := fetcher.NewClient(fetcher.Options{})
		orch := monitor.NewOrchestrator(settings, client, tracker, state, checkJournal)

		if !runNoStart {
			orch.Start(ctx)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			orch.RunAlertTimer(gctx)
			return nil
		})
		g.Go(func() error {
			srv := server.New(settings, orch, history)
			srv.PersistTo(config.DefaultFile)
			return srv.Run(gctx)
		})

		err := g.Wait()
		orch.Stop("shutting down")
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoStart, "no-start", false, "do not start monitoring automatically")
	rootCmd.AddCommand(runCmd)
}
