package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ftp-sentinel/internal/config"
	"github.com/sells-group/ftp-sentinel/internal/mailer"
)

var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Send a test email using the configured SMTP settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		sender := mailer.NewSender(config.NewManager(cfg))
		if err := sender.SendTest(cmd.Context()); err != nil {
			return eris.Wrap(err, "send test email")
		}
		zap.L().Info("test email sent",
			zap.String("host", cfg.SMTP.Host),
			zap.String("to", cfg.SMTP.To),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendTestCmd)
}
