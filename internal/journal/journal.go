// Package journal persists a local history of check cycles and sent alerts,
// so operators can see what the monitor has been doing across restarts.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ftp-sentinel/internal/fetcher"
)

// Journal records monitoring activity in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at the given path and
// configures WAL mode.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "journal: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "journal: exec %s", pragma)
		}
	}
	return &Journal{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS checks (
	id         TEXT PRIMARY KEY,
	downloaded INTEGER NOT NULL,
	skipped    INTEGER NOT NULL,
	deleted    INTEGER NOT NULL,
	errors     INTEGER NOT NULL,
	checked_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id      TEXT PRIMARY KEY,
	subject TEXT NOT NULL,
	body    TEXT NOT NULL,
	sent_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(checked_at);
CREATE INDEX IF NOT EXISTS idx_alerts_sent_at ON alerts(sent_at);
`

// Migrate creates the journal tables.
func (j *Journal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "journal: migrate")
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// CheckRecord is one persisted check cycle.
type CheckRecord struct {
	ID         string    `json:"id"`
	Downloaded int       `json:"downloaded"`
	Skipped    int       `json:"skipped"`
	Deleted    int       `json:"deleted"`
	Errors     int       `json:"errors"`
	CheckedAt  time.Time `json:"checked_at"`
}

// AlertRecord is one persisted alert send.
type AlertRecord struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// RecordCheck persists one check cycle's outcome.
func (j *Journal) RecordCheck(ctx context.Context, res fetcher.CheckResult) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO checks (id, downloaded, skipped, deleted, errors, checked_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), res.Downloaded, res.Skipped, res.Deleted, res.Errors, time.Now().UTC(),
	)
	return eris.Wrap(err, "journal: insert check")
}

// RecordAlert persists one sent alert.
func (j *Journal) RecordAlert(ctx context.Context, subject, body string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO alerts (id, subject, body, sent_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), subject, body, time.Now().UTC(),
	)
	return eris.Wrap(err, "journal: insert alert")
}

// RecentChecks returns the most recent check cycles, newest first.
func (j *Journal) RecentChecks(ctx context.Context, limit int) ([]CheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, downloaded, skipped, deleted, errors, checked_at FROM checks ORDER BY checked_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "journal: query checks")
	}
	defer rows.Close()

	var out []CheckRecord
	for rows.Next() {
		var rec CheckRecord
		if err := rows.Scan(&rec.ID, &rec.Downloaded, &rec.Skipped, &rec.Deleted, &rec.Errors, &rec.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "journal: scan check")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "journal: iterate checks")
}

// RecentAlerts returns the most recent sent alerts, newest first.
func (j *Journal) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, subject, body, sent_at FROM alerts ORDER BY sent_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "journal: query alerts")
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		if err := rows.Scan(&rec.ID, &rec.Subject, &rec.Body, &rec.SentAt); err != nil {
			return nil, eris.Wrap(err, "journal: scan alert")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "journal: iterate alerts")
}

// Totals summarizes all recorded activity.
type Totals struct {
	Checks     int `json:"checks"`
	Downloaded int `json:"downloaded"`
	Deleted    int `json:"deleted"`
	Errors     int `json:"errors"`
	Alerts     int `json:"alerts"`
}

// Summarize returns lifetime totals across the journal.
func (j *Journal) Summarize(ctx context.Context) (*Totals, error) {
	var t Totals
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(downloaded), 0), COALESCE(SUM(deleted), 0), COALESCE(SUM(errors), 0) FROM checks`,
	).Scan(&t.Checks, &t.Downloaded, &t.Deleted, &t.Errors)
	if err != nil {
		return nil, eris.Wrap(err, "journal: totals checks")
	}
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&t.Alerts); err != nil {
		return nil, eris.Wrap(err, "journal: totals alerts")
	}
	return &t, nil
}
