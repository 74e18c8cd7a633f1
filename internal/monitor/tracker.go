package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ftp-sentinel/internal/config"
	"github.com/sells-group/ftp-sentinel/internal/schedule"
)

// Mailer sends one alert message.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// AlertJournal records sent alerts. May be satisfied by a nil-checked
// optional journal.
type AlertJournal interface {
	RecordAlert(ctx context.Context, subject, body string) error
}

// Tracker decides whether a "no downloads" alert is due and sends it. It is
// consulted after every polling tick and by the background not-monitoring
// timer, both of which share the same runtime state.
type Tracker struct {
	settings *config.Manager
	state    *State
	mailer   Mailer
	journal  AlertJournal

	now func() time.Time
}

// NewTracker creates an alert tracker. journal may be nil.
func NewTracker(settings *config.Manager, state *State, mailer Mailer, journal AlertJournal) *Tracker {
	return &Tracker{
		settings: settings,
		state:    state,
		mailer:   mailer,
		journal:  journal,
		now:      time.Now,
	}
}

// MaybeSendAlert evaluates the inactivity threshold against the current
// settings and fires an alert email when one is due. It returns true only
// when an alert was actually sent. Send failures are logged, leave the
// last-alert timestamp untouched so the next cycle retries, and never
// propagate to the caller.
func (t *Tracker) MaybeSendAlert(ctx context.Context, monitoringActive bool) bool {
	cfg := t.settings.Current()
	alerts := cfg.Alerts
	log := zap.L().With(zap.String("component", "monitor.tracker"))

	if !alerts.Enabled || !alerts.SendDownloadAlerts || alerts.ThresholdMinutes <= 0 {
		return false
	}
	if !monitoringActive && !alerts.WhenNotMonitoring {
		return false
	}

	now := t.now()
	if !schedule.AlertPermitted(alerts.Schedule(), now) {
		log.Debug("alert suppressed: outside permitted schedule")
		return false
	}

	threshold := time.Duration(alerts.ThresholdMinutes) * time.Minute
	snap := t.state.Snapshot()

	lastActivity := snap.LastSuccessfulCheckAt
	if lastActivity.IsZero() {
		lastActivity = snap.MonitoringStartedAt
	}
	if lastActivity.IsZero() {
		if !alerts.WhenNotMonitoring {
			return false
		}
		// No reference point exists before monitoring ever started; assume
		// the threshold has just been crossed so the first background check
		// can alert.
		lastActivity = now.Add(-threshold - time.Minute)
	}

	inactive := now.Sub(lastActivity)
	if inactive < threshold {
		return false
	}

	// Repeat cadence equals the threshold itself, floored at one minute.
	if !snap.LastAlertSentAt.IsZero() {
		cadence := threshold
		if cadence < time.Minute {
			cadence = time.Minute
		}
		if now.Sub(snap.LastAlertSentAt) < cadence {
			return false
		}
	}

	subject, body := composeAlert(cfg, lastActivity, now)
	if err := t.mailer.Send(ctx, subject, body); err != nil {
		log.Error("failed to send no-download alert", zap.Error(err))
		return false
	}

	t.state.MarkAlertSent(now)
	log.Info("no-download alert sent",
		zap.Duration("inactive", inactive),
		zap.Int("threshold_minutes", alerts.ThresholdMinutes),
	)

	if t.journal != nil {
		if err := t.journal.RecordAlert(ctx, subject, body); err != nil {
			log.Warn("failed to journal alert", zap.Error(err))
		}
	}
	return true
}

func composeAlert(cfg config.Config, lastActivity, now time.Time) (subject, body string) {
	subject = "FTP Sentinel: no downloads detected"
	body = fmt.Sprintf(
		"No files have been downloaded for at least %d minutes.\n\n"+
			"Server:      %s\n"+
			"Remote path: %s\n"+
			"Local path:  %s\n"+
			"Last activity: %s\n"+
			"Checked at:    %s\n",
		cfg.Alerts.ThresholdMinutes,
		cfg.FTP.Host,
		cfg.FTP.RemotePath,
		cfg.Local.DownloadDir,
		lastActivity.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	return subject, body
}
