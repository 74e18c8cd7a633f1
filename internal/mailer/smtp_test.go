package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ftp-sentinel/internal/config"
)

func TestSplitRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@example.com"}, splitRecipients("a@example.com"))
	assert.Equal(t,
		[]string{"a@example.com", "b@example.com"},
		splitRecipients("a@example.com; b@example.com"),
	)
	assert.Equal(t,
		[]string{"a@example.com", "b@example.com"},
		splitRecipients("a@example.com,b@example.com,"),
	)
	assert.Empty(t, splitRecipients(""))
	assert.Empty(t, splitRecipients(" ; , "))
}

func TestSend_IncompleteSettings(t *testing.T) {
	cases := []config.SMTPConfig{
		{},
		{Host: "smtp.example.com", From: "x@example.com"},                        // no recipients
		{Host: "smtp.example.com", To: "a@example.com"},                          // no from
		{From: "x@example.com", To: "a@example.com"},                             // no host
		{Host: "smtp.example.com", From: "x@example.com", To: " ; "},             // empty recipients
	}

	for _, smtp := range cases {
		s := NewSender(config.NewManager(&config.Config{SMTP: smtp}))
		err := s.Send(context.Background(), "subject", "body")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "settings incomplete")
	}
}

func TestSend_ReadsLiveSettings(t *testing.T) {
	mgr := config.NewManager(&config.Config{})
	s := NewSender(mgr)

	// Incomplete at first.
	require.Error(t, s.Send(context.Background(), "subject", "body"))

	// After a settings update the sender sees the new values; an invalid
	// from address now fails at message construction instead.
	mgr.Update(func(c *config.Config) {
		c.SMTP.Host = "smtp.example.com"
		c.SMTP.From = "not an address"
		c.SMTP.To = "a@example.com"
	})
	err := s.Send(context.Background(), "subject", "body")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "settings incomplete")
}
