package mailer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/sells-group/ftp-sentinel/internal/config"
)

// Sender delivers alert emails over SMTP. Settings are read from the live
// configuration on every send so SMTP edits take effect without a restart.
type Sender struct {
	settings *config.Manager
}

// NewSender creates a Sender bound to the live settings.
func NewSender(settings *config.Manager) *Sender {
	return &Sender{settings: settings}
}

// Send delivers one plain-text message to all configured recipients.
func (s *Sender) Send(ctx context.Context, subject, body string) error {
	cfg := s.settings.Current().SMTP

	recipients := splitRecipients(cfg.To)
	if cfg.Host == "" || cfg.From == "" || len(recipients) == 0 {
		return eris.New("mailer: settings incomplete: host, from address, and recipients are required")
	}

	msg := mail.NewMsg()
	if err := msg.From(cfg.From); err != nil {
		return eris.Wrapf(err, "mailer: from address %q", cfg.From)
	}
	if err := msg.To(recipients...); err != nil {
		return eris.Wrap(err, "mailer: recipient addresses")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(20 * time.Second),
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		// STARTTLS when the server offers it, plain otherwise.
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "mailer: create client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrapf(err, "mailer: send via %s", cfg.Host)
	}

	zap.L().Info("mailer: email sent",
		zap.String("subject", subject),
		zap.Strings("to", recipients),
	)
	return nil
}

// SendTest delivers the configuration test message.
func (s *Sender) SendTest(ctx context.Context) error {
	return s.Send(ctx,
		"FTP Sentinel: test email",
		"This is a test email from ftp-sentinel. Your SMTP settings are working.",
	)
}

// splitRecipients splits the configured recipient list on ';' or ',' and
// drops empty segments.
func splitRecipients(to string) []string {
	fields := strings.FieldsFunc(to, func(r rune) bool {
		return r == ';' || r == ','
	})

	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
