// Package server exposes the local status and control API. It is bound to
// loopback by default and exists so operators and a UI shell can inspect and
// drive the monitor without touching the process.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ftp-sentinel/internal/config"
	"github.com/sells-group/ftp-sentinel/internal/journal"
	"github.com/sells-group/ftp-sentinel/internal/monitor"
)

const shutdownGrace = 5 * time.Second

// Monitor is the orchestrator surface the API drives.
type Monitor interface {
	Start(ctx context.Context)
	Stop(reason string)
	IsMonitoringActive() bool
	Status() monitor.Status
}

// History is the journal surface the API reads. May be absent when the
// journal is disabled.
type History interface {
	RecentChecks(ctx context.Context, limit int) ([]journal.CheckRecord, error)
	RecentAlerts(ctx context.Context, limit int) ([]journal.AlertRecord, error)
	Summarize(ctx context.Context) (*journal.Totals, error)
}

// Server serves the status API.
type Server struct {
	settings *config.Manager
	mon      Monitor
	history  History

	// configFile, when set, receives the live configuration after every
	// settings edit so edits survive a restart.
	configFile string

	// base is the context monitoring started from the API runs under, so a
	// started loop outlives the request that started it.
	base context.Context
}

// New creates a server. history may be nil when the journal is disabled.
func New(settings *config.Manager, mon Monitor, history History) *Server {
	return &Server{
		settings: settings,
		mon:      mon,
		history:  history,
		base:     context.Background(),
	}
}

// PersistTo makes runtime settings edits durable by saving the live
// configuration to path after each update.
func (s *Server) PersistTo(path string) {
	s.configFile = path
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/monitor/start", s.handleStart)
	r.Post("/monitor/stop", s.handleStop)
	r.Post("/alerts/not-monitoring", s.handleNotMonitoring)
	r.Get("/journal/checks", s.handleChecks)
	r.Get("/journal/alerts", s.handleAlerts)
	r.Get("/journal/summary", s.handleSummary)

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.base = ctx

	addr := s.settings.Current().Server.Addr
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down status server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("status server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting status server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.mon.IsMonitoringActive() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "monitoring already active"})
		return
	}
	s.mon.Start(s.base)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.mon.IsMonitoringActive() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "monitoring not active"})
		return
	}
	s.mon.Stop("api request")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopped"})
}

func (s *Server) handleNotMonitoring(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s.settings.Update(func(c *config.Config) {
		c.Alerts.WhenNotMonitoring = req.Enabled
	})
	s.persistSettings()
	zap.L().Info("not-monitoring alerts toggled", zap.Bool("enabled", req.Enabled))
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal disabled"})
		return
	}
	recs, err := s.history.RecentChecks(r.Context(), limitParam(r))
	if err != nil {
		zap.L().Error("failed to read check history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
		return
	}
	if recs == nil {
		recs = []journal.CheckRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal disabled"})
		return
	}
	recs, err := s.history.RecentAlerts(r.Context(), limitParam(r))
	if err != nil {
		zap.L().Error("failed to read alert history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
		return
	}
	if recs == nil {
		recs = []journal.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal disabled"})
		return
	}
	totals, err := s.history.Summarize(r.Context())
	if err != nil {
		zap.L().Error("failed to summarize journal", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// persistSettings saves the live configuration after an edit. Save failures
// are logged; the in-memory edit stays effective either way.
func (s *Server) persistSettings() {
	if s.configFile == "" {
		return
	}
	cfg := s.settings.Current()
	if err := config.Save(&cfg, s.configFile); err != nil {
		zap.L().Warn("failed to persist settings", zap.Error(err))
	}
}

// limitParam parses the optional ?limit= query parameter. Invalid or missing
// values fall back to the journal's default.
func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
