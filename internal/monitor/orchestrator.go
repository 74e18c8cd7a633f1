package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ftp-sentinel/internal/config"
	"github.com/sells-group/ftp-sentinel/internal/fetcher"
)

// stopGrace bounds how long Stop waits for the loop to observe cancellation.
const stopGrace = 500 * time.Millisecond

// alertTimerCadence is the fixed wall-clock cadence of the background
// "alert when not monitoring" timer.
const alertTimerCadence = time.Minute

// Downloader performs one FTP check cycle.
type Downloader interface {
	Check(ctx context.Context, p fetcher.Params) (fetcher.CheckResult, error)
}

// CheckJournal records completed check cycles. Optional.
type CheckJournal interface {
	RecordCheck(ctx context.Context, res fetcher.CheckResult) error
}

// Status is a point-in-time view of the monitor for the status API and any
// subscribed UI shell.
type Status struct {
	Monitoring            bool      `json:"monitoring"`
	StatusText            string    `json:"status"`
	Cycles                int64     `json:"cycles"`
	Downloads             int64     `json:"downloads"`
	Errors                int64     `json:"errors"`
	MonitoringStartedAt   time.Time `json:"monitoring_started_at,omitzero"`
	LastSuccessfulCheckAt time.Time `json:"last_successful_check_at,omitzero"`
	LastAlertSentAt       time.Time `json:"last_alert_sent_at,omitzero"`
}

// Orchestrator owns the polling loop's lifecycle and wires the downloader,
// alert tracker, and journal together. It also runs the independent
// background alert timer so alerts can fire while monitoring is stopped.
type Orchestrator struct {
	settings   *config.Manager
	downloader Downloader
	tracker    *Tracker
	state      *State
	journal    CheckJournal
	now        func() time.Time

	timerCadence time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	statusText string
	onStatus   func(Status)

	cycles    atomic.Int64
	downloads atomic.Int64
	errCount  atomic.Int64
}

// NewOrchestrator creates an orchestrator. journal may be nil.
func NewOrchestrator(settings *config.Manager, downloader Downloader, tracker *Tracker, state *State, journal CheckJournal) *Orchestrator {
	return &Orchestrator{
		settings:     settings,
		downloader:   downloader,
		tracker:      tracker,
		state:        state,
		journal:      journal,
		now:          time.Now,
		statusText:   "stopped",
		timerCadence: alertTimerCadence,
	}
}

// SetStatusListener registers a callback invoked on every status-text
// change. Intended for a UI shell; the callback must not block.
func (o *Orchestrator) SetStatusListener(fn func(Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onStatus = fn
}

// Start launches the polling loop. Calling Start while the loop is already
// running is a logged no-op, not an error.
func (o *Orchestrator) Start(parent context.Context) {
	o.mu.Lock()
	if o.done != nil {
		o.mu.Unlock()
		zap.L().Warn("monitor already running; start ignored")
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done
	o.setStatusLocked("monitoring")
	o.mu.Unlock()

	o.state.MarkStarted(o.now())
	interval := time.Duration(o.settings.Current().Monitor.IntervalSecs) * time.Second

	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("polling loop panicked", zap.Any("panic", r))
			}
			o.finish()
			close(done)
		}()
		RunLoop(ctx, interval, o.tick)
	}()
}

// Stop cancels the polling loop and waits briefly for it to exit. Safe to
// call when the loop is not running.
func (o *Orchestrator) Stop(reason string) {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel == nil {
		return
	}

	zap.L().Info("stopping monitor", zap.String("reason", reason))
	cancel()

	select {
	case <-done:
	case <-time.After(stopGrace):
		zap.L().Warn("polling loop did not stop within grace period")
	}
}

// IsMonitoringActive reports whether the polling loop is currently running.
func (o *Orchestrator) IsMonitoringActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done != nil
}

// Status returns a point-in-time snapshot of the monitor.
func (o *Orchestrator) Status() Status {
	snap := o.state.Snapshot()

	o.mu.Lock()
	active := o.done != nil
	text := o.statusText
	o.mu.Unlock()

	return Status{
		Monitoring:            active,
		StatusText:            text,
		Cycles:                o.cycles.Load(),
		Downloads:             o.downloads.Load(),
		Errors:                o.errCount.Load(),
		MonitoringStartedAt:   snap.MonitoringStartedAt,
		LastSuccessfulCheckAt: snap.LastSuccessfulCheckAt,
		LastAlertSentAt:       snap.LastAlertSentAt,
	}
}

// RunAlertTimer runs the independent background alert timer until ctx is
// cancelled. It fires on a fixed cadence regardless of the polling loop's
// lifecycle, and consults the tracker only while monitoring is inactive and
// the not-monitoring setting is enabled. The setting is re-read every tick,
// so toggling it at runtime takes effect without a restart.
func (o *Orchestrator) RunAlertTimer(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitor.alerttimer"))
	log.Info("starting background alert timer", zap.Duration("cadence", o.timerCadence))

	ticker := time.NewTicker(o.timerCadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("background alert timer stopped")
			return
		case <-ticker.C:
			if !o.settings.Current().Alerts.WhenNotMonitoring {
				continue
			}
			if o.IsMonitoringActive() {
				continue
			}
			o.tracker.MaybeSendAlert(ctx, false)
		}
	}
}

// tick performs one check cycle: a settings snapshot is captured up front so
// a concurrent settings edit cannot change the cycle midway.
func (o *Orchestrator) tick(ctx context.Context) error {
	cfg := o.settings.Current()
	cycle := o.cycles.Add(1)
	log := zap.L().With(
		zap.String("component", "monitor.orchestrator"),
		zap.Int64("cycle", cycle),
	)
	log.Debug("starting check cycle", zap.String("host", cfg.FTP.Host))

	res, err := o.downloader.Check(ctx, fetcher.Params{
		Host:                cfg.FTP.Host,
		Port:                cfg.FTP.Port,
		User:                cfg.FTP.User,
		Password:            cfg.FTP.Password,
		Timeout:             time.Duration(cfg.FTP.TimeoutSecs) * time.Second,
		RemotePath:          cfg.FTP.RemotePath,
		LocalDir:            cfg.Local.DownloadDir,
		DeleteAfterDownload: cfg.FTP.DeleteAfterDownload,
	})

	o.downloads.Add(int64(res.Downloaded))
	o.errCount.Add(int64(res.Errors))

	// A downloaded file counts as activity even when the cycle later failed,
	// e.g. a walk aborted partway after transfers completed.
	if res.Activity() {
		o.state.MarkActivity(o.now())
	}

	if err == nil {
		log.Info("check cycle complete",
			zap.Int("downloaded", res.Downloaded),
			zap.Int("skipped", res.Skipped),
			zap.Int("deleted", res.Deleted),
			zap.Int("errors", res.Errors),
		)
		if o.journal != nil {
			if jerr := o.journal.RecordCheck(ctx, res); jerr != nil {
				log.Warn("failed to journal check", zap.Error(jerr))
			}
		}
	} else {
		o.errCount.Add(1)
	}

	// The alert check runs even when the cycle failed: an unreachable server
	// is exactly the situation inactivity alerts exist for.
	o.tracker.MaybeSendAlert(ctx, true)

	return err
}

// finish runs when the loop goroutine exits for any reason: cancellation,
// panic, or return.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancel = nil
	o.done = nil
	o.setStatusLocked("stopped")
}

func (o *Orchestrator) setStatusLocked(text string) {
	o.statusText = text
	if o.onStatus != nil {
		fn := o.onStatus
		go fn(o.statusSnapshotLocked(text))
	}
}

func (o *Orchestrator) statusSnapshotLocked(text string) Status {
	snap := o.state.Snapshot()
	return Status{
		Monitoring:            o.done != nil,
		StatusText:            text,
		Cycles:                o.cycles.Load(),
		Downloads:             o.downloads.Load(),
		Errors:                o.errCount.Load(),
		MonitoringStartedAt:   snap.MonitoringStartedAt,
		LastSuccessfulCheckAt: snap.LastSuccessfulCheckAt,
		LastAlertSentAt:       snap.LastAlertSentAt,
	}
}
