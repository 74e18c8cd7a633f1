package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ftp-sentinel/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"run", "check", "send-test", "history"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "ftp-sentinel", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("no-start")
	require.NotNil(t, flag, "run command should have --no-start flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestHistoryCommand_Flags(t *testing.T) {
	flag := historyCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "history command should have --limit flag")
	assert.Equal(t, "50", flag.DefValue)

	require.NotNil(t, historyCmd.Flags().Lookup("alerts"))
}

func TestCheckParams(t *testing.T) {
	c := config.Config{}
	c.FTP.Host = "ftp.example.com"
	c.FTP.Port = 2121
	c.FTP.User = "reports"
	c.FTP.TimeoutSecs = 45
	c.FTP.RemotePath = "/outbox"
	c.FTP.DeleteAfterDownload = true
	c.Local.DownloadDir = "/var/downloads"

	p := checkParams(c)
	assert.Equal(t, "ftp.example.com:2121", p.Addr())
	assert.Equal(t, "reports", p.User)
	assert.Equal(t, 45*time.Second, p.Timeout)
	assert.Equal(t, "/outbox", p.RemotePath)
	assert.Equal(t, "/var/downloads", p.LocalDir)
	assert.True(t, p.DeleteAfterDownload)
}
