package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ftp-sentinel/internal/schedule"
)

// Config holds the full application configuration.
type Config struct {
	FTP     FTPConfig     `yaml:"ftp" mapstructure:"ftp"`
	Local   LocalConfig   `yaml:"local" mapstructure:"local"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
	Alerts  AlertsConfig  `yaml:"alerts" mapstructure:"alerts"`
	SMTP    SMTPConfig    `yaml:"smtp" mapstructure:"smtp"`
	Journal JournalConfig `yaml:"journal" mapstructure:"journal"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// FTPConfig holds the FTP connection and remote-side behavior.
type FTPConfig struct {
	Host                string `yaml:"host" mapstructure:"host"`
	Port                int    `yaml:"port" mapstructure:"port"`
	User                string `yaml:"user" mapstructure:"user"`
	Password            string `yaml:"password" mapstructure:"password"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RemotePath          string `yaml:"remote_path" mapstructure:"remote_path"`
	DeleteAfterDownload bool   `yaml:"delete_after_download" mapstructure:"delete_after_download"`
}

// LocalConfig holds the local download destination.
type LocalConfig struct {
	DownloadDir string `yaml:"download_dir" mapstructure:"download_dir"`
}

// MonitorConfig configures the polling loop.
type MonitorConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// AlertsConfig configures the no-download alert schedule and thresholds.
type AlertsConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Always             bool   `yaml:"always" mapstructure:"always"`
	AllDay             bool   `yaml:"all_day" mapstructure:"all_day"`
	Weekdays           string `yaml:"weekdays" mapstructure:"weekdays"`
	WorkStart          string `yaml:"work_start" mapstructure:"work_start"`
	WorkEnd            string `yaml:"work_end" mapstructure:"work_end"`
	LunchStart         string `yaml:"lunch_start" mapstructure:"lunch_start"`
	LunchEnd           string `yaml:"lunch_end" mapstructure:"lunch_end"`
	Shifts             string `yaml:"shifts" mapstructure:"shifts"`
	Excluded           string `yaml:"excluded" mapstructure:"excluded"`
	ThresholdMinutes   int    `yaml:"threshold_minutes" mapstructure:"threshold_minutes"`
	SendDownloadAlerts bool   `yaml:"send_download_alerts" mapstructure:"send_download_alerts"`
	WhenNotMonitoring  bool   `yaml:"when_not_monitoring" mapstructure:"when_not_monitoring"`
}

// Schedule converts the alert settings to the evaluator's input.
func (a AlertsConfig) Schedule() schedule.Schedule {
	return schedule.Schedule{
		Enabled:    a.Enabled,
		Always:     a.Always,
		AllDay:     a.AllDay,
		Weekdays:   a.Weekdays,
		WorkStart:  a.WorkStart,
		WorkEnd:    a.WorkEnd,
		LunchStart: a.LunchStart,
		LunchEnd:   a.LunchEnd,
		Shifts:     a.Shifts,
		Excluded:   a.Excluded,
	}
}

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSL      bool   `yaml:"ssl" mapstructure:"ssl"`
	From     string `yaml:"from" mapstructure:"from"`

	// To is a list of recipients delimited by ';' or ','.
	To string `yaml:"to" mapstructure:"to"`
}

// JournalConfig configures the local activity journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the local status API.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultFile is the config file Load reads from the working directory and
// runtime settings edits persist to.
const DefaultFile = "config.yaml"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one, even when it is just the zero value:
	// AutomaticEnv only surfaces env overrides for keys viper already knows
	// about when Unmarshal runs.
	v.SetDefault("ftp.host", "")
	v.SetDefault("ftp.port", 21)
	v.SetDefault("ftp.user", "")
	v.SetDefault("ftp.password", "")
	v.SetDefault("ftp.timeout_secs", 30)
	v.SetDefault("ftp.remote_path", "/")
	v.SetDefault("ftp.delete_after_download", false)
	v.SetDefault("local.download_dir", "downloads")
	v.SetDefault("monitor.interval_secs", 30)
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.always", false)
	v.SetDefault("alerts.all_day", false)
	v.SetDefault("alerts.weekdays", "Mon,Tue,Wed,Thu,Fri")
	v.SetDefault("alerts.work_start", "08:00")
	v.SetDefault("alerts.work_end", "17:00")
	v.SetDefault("alerts.lunch_start", "00:00")
	v.SetDefault("alerts.lunch_end", "00:00")
	v.SetDefault("alerts.shifts", "")
	v.SetDefault("alerts.excluded", "")
	v.SetDefault("alerts.threshold_minutes", 15)
	v.SetDefault("alerts.send_download_alerts", true)
	v.SetDefault("alerts.when_not_monitoring", false)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.ssl", false)
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.to", "")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "sentinel.db")
	v.SetDefault("server.addr", "127.0.0.1:8077")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Save writes the configuration to the given path as YAML, so settings
// edited at runtime (e.g. via the status API) survive a restart. The file is
// written to a temp file first and renamed into place.
func Save(cfg *Config, path string) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return eris.Wrap(err, "config: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return eris.Wrap(err, "config: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "config: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrap(err, "config: replace file")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Manager holds the live configuration. Settings are read on every polling
// tick and every alert check, and may be replaced at runtime by the status
// API, so all access goes through the lock.
type Manager struct {
	mu  sync.RWMutex
	cfg Config
}

// NewManager wraps a loaded configuration.
func NewManager(cfg *Config) *Manager {
	return &Manager{cfg: *cfg}
}

// Current returns a copy of the live configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Update applies fn to the live configuration under the lock.
func (m *Manager) Update(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.cfg)
}
