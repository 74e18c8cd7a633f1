package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ftp-sentinel/internal/config"
	"github.com/sells-group/ftp-sentinel/internal/fetcher"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single FTP check cycle and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client := fetcher.NewClient(fetcher.Options{})
		res, err := client.Check(ctx, checkParams(*cfg))
		if err != nil {
			return eris.Wrap(err, "check")
		}

		zap.L().Info("check complete",
			zap.Int("downloaded", res.Downloaded),
			zap.Int("skipped", res.Skipped),
			zap.Int("deleted", res.Deleted),
			zap.Int("errors", res.Errors),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// checkParams maps the loaded configuration onto one check cycle's inputs.
func checkParams(c config.Config) fetcher.Params {
	return fetcher.Params{
		Host:                c.FTP.Host,
		Port:                c.FTP.Port,
		User:                c.FTP.User,
		Password:            c.FTP.Password,
		Timeout:             time.Duration(c.FTP.TimeoutSecs) * time.Second,
		RemotePath:          c.FTP.RemotePath,
		LocalDir:            c.Local.DownloadDir,
		DeleteAfterDownload: c.FTP.DeleteAfterDownload,
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
