package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ftp-sentinel/internal/config"
	"github.com/sells-group/ftp-sentinel/internal/journal"
	"github.com/sells-group/ftp-sentinel/internal/monitor"
)

type fakeMonitor struct {
	mu      sync.Mutex
	active  bool
	started int
	stopped int
	reason  string
}

func (m *fakeMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	m.started++
}

func (m *fakeMonitor) Stop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.stopped++
	m.reason = reason
}

func (m *fakeMonitor) IsMonitoringActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *fakeMonitor) Status() monitor.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	text := "stopped"
	if m.active {
		text = "monitoring"
	}
	return monitor.Status{Monitoring: m.active, StatusText: text, Cycles: 7}
}

type fakeHistory struct {
	checks    []journal.CheckRecord
	alerts    []journal.AlertRecord
	totals    journal.Totals
	err       error
	lastLimit int
}

func (h *fakeHistory) RecentChecks(ctx context.Context, limit int) ([]journal.CheckRecord, error) {
	h.lastLimit = limit
	return h.checks, h.err
}

func (h *fakeHistory) RecentAlerts(ctx context.Context, limit int) ([]journal.AlertRecord, error) {
	h.lastLimit = limit
	return h.alerts, h.err
}

func (h *fakeHistory) Summarize(ctx context.Context) (*journal.Totals, error) {
	if h.err != nil {
		return nil, h.err
	}
	return &h.totals, nil
}

func serverSettings() *config.Manager {
	cfg := &config.Config{}
	cfg.Server.Addr = "127.0.0.1:0"
	return config.NewManager(cfg)
}

func newTestServer(history History) (*httptest.Server, *fakeMonitor) {
	mon := &fakeMonitor{}
	srv := New(serverSettings(), mon, history)
	return httptest.NewServer(srv.Router()), mon
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(nil)
	defer ts.Close()

	var body map[string]string
	code := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Status(t *testing.T) {
	ts, mon := newTestServer(nil)
	defer ts.Close()
	mon.active = true

	var status monitor.Status
	code := getJSON(t, ts.URL+"/status", &status)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.Monitoring)
	assert.Equal(t, "monitoring", status.StatusText)
	assert.Equal(t, int64(7), status.Cycles)
}

func TestServer_StartStop(t *testing.T) {
	ts, mon := newTestServer(nil)
	defer ts.Close()

	assert.Equal(t, http.StatusAccepted, postJSON(t, ts.URL+"/monitor/start", ""))
	assert.True(t, mon.IsMonitoringActive())

	// Starting again conflicts instead of double-starting.
	assert.Equal(t, http.StatusConflict, postJSON(t, ts.URL+"/monitor/start", ""))
	assert.Equal(t, 1, mon.started)

	assert.Equal(t, http.StatusAccepted, postJSON(t, ts.URL+"/monitor/stop", ""))
	assert.False(t, mon.IsMonitoringActive())
	assert.Equal(t, "api request", mon.reason)

	assert.Equal(t, http.StatusConflict, postJSON(t, ts.URL+"/monitor/stop", ""))
	assert.Equal(t, 1, mon.stopped)
}

func TestServer_NotMonitoringToggle(t *testing.T) {
	mon := &fakeMonitor{}
	settings := serverSettings()
	srv := New(settings, mon, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/alerts/not-monitoring", `{"enabled":true}`))
	assert.True(t, settings.Current().Alerts.WhenNotMonitoring)

	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/alerts/not-monitoring", `{"enabled":false}`))
	assert.False(t, settings.Current().Alerts.WhenNotMonitoring)

	assert.Equal(t, http.StatusBadRequest, postJSON(t, ts.URL+"/alerts/not-monitoring", "not json"))
}

func TestServer_NotMonitoringTogglePersists(t *testing.T) {
	settings := serverSettings()
	srv := New(settings, &fakeMonitor{}, nil)
	path := filepath.Join(t.TempDir(), "config.yaml")
	srv.PersistTo(path)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	require.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/alerts/not-monitoring", `{"enabled":true}`))

	// The edit survives a restart: the saved file carries the new value.
	out, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved config.Config
	require.NoError(t, yaml.Unmarshal(out, &saved))
	assert.True(t, saved.Alerts.WhenNotMonitoring)
}

func TestServer_JournalEndpoints(t *testing.T) {
	history := &fakeHistory{
		checks: []journal.CheckRecord{{ID: "c1", Downloaded: 3, CheckedAt: time.Now()}},
		alerts: []journal.AlertRecord{{ID: "a1", Subject: "no downloads", SentAt: time.Now()}},
		totals: journal.Totals{Checks: 10, Downloaded: 25, Alerts: 2},
	}
	ts, _ := newTestServer(history)
	defer ts.Close()

	var checks []journal.CheckRecord
	code := getJSON(t, ts.URL+"/journal/checks?limit=5", &checks)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, checks, 1)
	assert.Equal(t, 3, checks[0].Downloaded)
	assert.Equal(t, 5, history.lastLimit)

	var alerts []journal.AlertRecord
	code = getJSON(t, ts.URL+"/journal/alerts", &alerts)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, alerts, 1)
	assert.Equal(t, "no downloads", alerts[0].Subject)
	assert.Zero(t, history.lastLimit)

	var totals journal.Totals
	code = getJSON(t, ts.URL+"/journal/summary", &totals)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 10, totals.Checks)
}

func TestServer_JournalEmptyIsArray(t *testing.T) {
	ts, _ := newTestServer(&fakeHistory{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/journal/checks")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf [16]byte
	n, _ := resp.Body.Read(buf[:])
	assert.Equal(t, "[]", strings.TrimSpace(string(buf[:n])))
}

func TestServer_JournalDisabled(t *testing.T) {
	ts, _ := newTestServer(nil)
	defer ts.Close()

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/journal/checks", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/journal/alerts", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/journal/summary", nil))
}

func TestServer_JournalReadError(t *testing.T) {
	ts, _ := newTestServer(&fakeHistory{err: eris.New("database locked")})
	defer ts.Close()

	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/journal/checks", nil))
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	mon := &fakeMonitor{}
	srv := New(serverSettings(), mon, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after cancellation")
	}
}

func TestLimitParam(t *testing.T) {
	for raw, want := range map[string]int{
		"":    0,
		"25":  25,
		"-3":  0,
		"abc": 0,
	} {
		r := httptest.NewRequest(http.MethodGet, "/journal/checks?limit="+raw, nil)
		assert.Equal(t, want, limitParam(r), "limit=%q", raw)
	}
}
