package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Persisted intent values. Only these two are ever written to disk; the
// "error" display state is derived fresh on every query and never stored.
const (
	IntentRunning = "running"
	IntentStopped = "stopped"
)

// EmailStats are the dispatch counters carried in the status record.
type EmailStats struct {
	TotalSent   int        `json:"totalSent"`
	TotalFailed int        `json:"totalFailed"`
	LastSentAt  *time.Time `json:"lastSentAt,omitempty"`
}

// ServiceStatusRecord is the plain-JSON service.status file: the operator's
// persisted intent plus bookkeeping timestamps and counters.
type ServiceStatusRecord struct {
	Status       string      `json:"status"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	StoppedAt    *time.Time  `json:"stoppedAt,omitempty"`
	StartedBy    string      `json:"startedBy,omitempty"`
	LastActivity *time.Time  `json:"lastActivity,omitempty"`
	TotalRunTime int64       `json:"totalRunTime,omitempty"` // seconds
	EmailStats   *EmailStats `json:"emailStats,omitempty"`
}

// LoadStatus reads service.status. An absent file is not an error: it yields
// the default stopped record, stamped with the current time.
func (s *Store) LoadStatus() (ServiceStatusRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, statusFile))
	if err != nil {
		if os.IsNotExist(err) {
			now := s.now()
			return ServiceStatusRecord{Status: IntentStopped, StoppedAt: &now}, nil
		}
		return ServiceStatusRecord{}, fmt.Errorf("store: read %s: %w", statusFile, err)
	}

	var rec ServiceStatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ServiceStatusRecord{}, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, statusFile, err)
	}
	return rec, nil
}

// SetRunning persists the "running" intent, stamping StartedAt and
// StartedBy. Bookkeeping fields from the prior record are carried over.
func (s *Store) SetRunning(by string) (ServiceStatusRecord, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	rec, err := s.LoadStatus()
	if err != nil {
		return ServiceStatusRecord{}, err
	}

	now := s.now()
	rec.Status = IntentRunning
	rec.StartedAt = &now
	rec.StartedBy = by
	rec.LastActivity = &now

	if err := s.writeStatus(rec); err != nil {
		return ServiceStatusRecord{}, err
	}
	return rec, nil
}

// SetStopped persists the "stopped" intent, stamping StoppedAt and folding
// the elapsed run time into TotalRunTime when the record was running.
func (s *Store) SetStopped() (ServiceStatusRecord, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	rec, err := s.LoadStatus()
	if err != nil {
		return ServiceStatusRecord{}, err
	}

	now := s.now()
	if rec.Status == IntentRunning && rec.StartedAt != nil {
		rec.TotalRunTime += int64(now.Sub(*rec.StartedAt).Seconds())
	}
	rec.Status = IntentStopped
	rec.StoppedAt = &now
	rec.LastActivity = &now

	if err := s.writeStatus(rec); err != nil {
		return ServiceStatusRecord{}, err
	}
	return rec, nil
}

// RecordEmailOutcome folds one dispatch attempt into the persisted counters
// and refreshes LastActivity.
func (s *Store) RecordEmailOutcome(success bool) error {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	rec, err := s.LoadStatus()
	if err != nil {
		return err
	}

	now := s.now()
	if rec.EmailStats == nil {
		rec.EmailStats = &EmailStats{}
	}
	if success {
		rec.EmailStats.TotalSent++
		rec.EmailStats.LastSentAt = &now
	} else {
		rec.EmailStats.TotalFailed++
	}
	rec.LastActivity = &now

	return s.writeStatus(rec)
}

// writeStatus marshals rec and atomically replaces service.status.
// Callers must hold statusMu.
func (s *Store) writeStatus(rec ServiceStatusRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal status: %w", err)
	}
	return s.writeFileAtomic(statusFile, data)
}
