package monitor

import (
	"sync"
	"time"
)

// State holds the runtime timestamps shared by the polling loop and the
// background alert timer. The two run on independent schedules, so every
// access goes through the lock. A zero time means unset. State lives for one
// process and is never persisted.
type State struct {
	mu                    sync.Mutex
	monitoringStartedAt   time.Time
	lastSuccessfulCheckAt time.Time
	lastAlertSentAt       time.Time
}

// NewState creates an empty runtime state.
func NewState() *State {
	return &State{}
}

// MarkStarted records the moment monitoring started. Used as the activity
// reference until the first successful check.
func (s *State) MarkStarted(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitoringStartedAt = now
}

// MarkActivity records a successful check (at least one file downloaded) and
// clears the last-alert timestamp so the next inactivity episode starts a
// fresh first-alert cycle.
func (s *State) MarkActivity(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccessfulCheckAt = now
	s.lastAlertSentAt = time.Time{}
}

// MarkAlertSent records a successfully sent alert.
func (s *State) MarkAlertSent(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAlertSentAt = now
}

// Snapshot is a consistent copy of the runtime timestamps.
type Snapshot struct {
	MonitoringStartedAt   time.Time
	LastSuccessfulCheckAt time.Time
	LastAlertSentAt       time.Time
}

// Snapshot returns a consistent copy of all three timestamps.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		MonitoringStartedAt:   s.monitoringStartedAt,
		LastSuccessfulCheckAt: s.lastSuccessfulCheckAt,
		LastAlertSentAt:       s.lastAlertSentAt,
	}
}
