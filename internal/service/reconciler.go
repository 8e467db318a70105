// Package service implements the status reconciler: the read path that
// merges persisted operator intent, the configured daily window, and a live
// database connectivity check into one effective tri-state status snapshot.
//
// The effective status is computed fresh on every query. Only "running" and
// "stopped" are ever persisted; "error" exists purely as a derived display
// state and disappears as soon as connectivity returns.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ersimransingh/email-service-sub001/internal/probe"
	"github.com/ersimransingh/email-service-sub001/internal/schedule"
	"github.com/ersimransingh/email-service-sub001/internal/store"
)

// Status is the effective tri-state service status shown on the dashboard.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// ConfigSource is the subset of store.Store used by the reconciler. Defining
// an interface allows the reconciler to be tested with a mock store without
// touching the filesystem.
type ConfigSource interface {
	LoadDatabaseConfig() (store.ConnectionConfig, error)
	LoadScheduleConfig() (store.ScheduleConfig, error)
	LoadStatus() (store.ServiceStatusRecord, error)
	SetRunning(by string) (store.ServiceStatusRecord, error)
	SetStopped() (store.ServiceStatusRecord, error)
}

// Prober runs one bounded connectivity test against the stored tuple.
type Prober interface {
	Test(ctx context.Context, cfg store.ConnectionConfig, t probe.Timeouts) probe.Result
}

// DatabaseHealth is the connectivity portion of a snapshot. Reason is one of
// the closed probe reasons; the raw transport message never appears here.
type DatabaseHealth struct {
	Connected      bool   `json:"connected"`
	ResponseTimeMs int64  `json:"responseTimeMs,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Snapshot is the derived dashboard view. It has no independent lifecycle:
// every read recomputes it from the persisted files and a fresh probe.
type Snapshot struct {
	Status       Status           `json:"status"`
	Database     DatabaseHealth   `json:"database"`
	WindowActive bool             `json:"windowActive"`
	NextRun      *time.Time       `json:"nextRun,omitempty"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	StoppedAt    *time.Time       `json:"stoppedAt,omitempty"`
	StartedBy    string           `json:"startedBy,omitempty"`
	TotalRunTime int64            `json:"totalRunTime"`
	EmailStats   store.EmailStats `json:"emailStats"`
	CheckedAt    time.Time        `json:"checkedAt"`
}

// Reconciler composes the config store, the connectivity probe, and the
// schedule evaluator. Construct with New; dependencies are explicit, there
// is no package-level instance.
type Reconciler struct {
	store  ConfigSource
	probe  Prober
	logger *slog.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
}

// New creates a Reconciler. logger may be nil, in which case slog.Default()
// is used.
func New(cs ConfigSource, p Prober, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  cs,
		probe:  p,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot executes one status query: load + decrypt configuration, probe
// connectivity, evaluate the window, reconcile.
//
// Missing configuration is fatal to the query and reported to the caller
// (store.ErrConfigNotFound). A failed probe is NOT an error: it folds into
// the Error status, since an unreachable database is exactly what the
// dashboard needs to display.
func (r *Reconciler) Snapshot(ctx context.Context) (Snapshot, error) {
	dbCfg, err := r.store.LoadDatabaseConfig()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load database config: %w", err)
	}
	schedCfg, err := r.store.LoadScheduleConfig()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load schedule config: %w", err)
	}
	rec, err := r.store.LoadStatus()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load status record: %w", err)
	}

	now := r.now()
	snap := Snapshot{
		StartedAt:    rec.StartedAt,
		StoppedAt:    rec.StoppedAt,
		StartedBy:    rec.StartedBy,
		TotalRunTime: rec.TotalRunTime,
		CheckedAt:    now,
	}
	if rec.EmailStats != nil {
		snap.EmailStats = *rec.EmailStats
	}

	res := r.probe.Test(ctx, dbCfg, probe.Timeouts{
		Connect: time.Duration(schedCfg.DBConnectionTimeout) * time.Second,
		Request: time.Duration(schedCfg.DBRequestTimeout) * time.Second,
	})
	snap.Database = DatabaseHealth{
		Connected:      res.Connected,
		ResponseTimeMs: res.ResponseTimeMs,
		Reason:         string(res.Reason),
	}

	if !res.Connected {
		// Raw transport detail stays server-side.
		r.logger.Warn("database connectivity check failed",
			slog.String("reason", string(res.Reason)),
			slog.String("detail", res.Message),
		)
		snap.Status = StatusError
		return snap, nil
	}

	active, err := schedule.IsActive(now, schedCfg.StartTime, schedCfg.EndTime)
	if err != nil {
		return Snapshot{}, fmt.Errorf("evaluate window: %w", err)
	}
	snap.WindowActive = active

	if rec.Status == store.IntentRunning && active {
		snap.Status = StatusRunning
		next, err := schedule.NextRun(now, schedCfg.StartTime, schedCfg.EndTime,
			schedCfg.Interval, schedCfg.IntervalUnit)
		if err != nil {
			return Snapshot{}, fmt.Errorf("compute next run: %w", err)
		}
		snap.NextRun = &next
	} else {
		snap.Status = StatusStopped
	}

	return snap, nil
}

// Start persists the "running" intent. It refuses to start when no schedule
// configuration exists, since a worker without a window has nothing to obey.
func (r *Reconciler) Start(ctx context.Context, by string) (store.ServiceStatusRecord, error) {
	if _, err := r.store.LoadScheduleConfig(); err != nil {
		return store.ServiceStatusRecord{}, fmt.Errorf("load schedule config: %w", err)
	}
	rec, err := r.store.SetRunning(by)
	if err != nil {
		return store.ServiceStatusRecord{}, err
	}
	r.logger.Info("service started", slog.String("by", by))
	return rec, nil
}

// Stop persists the "stopped" intent.
func (r *Reconciler) Stop(ctx context.Context) (store.ServiceStatusRecord, error) {
	rec, err := r.store.SetStopped()
	if err != nil {
		return store.ServiceStatusRecord{}, err
	}
	r.logger.Info("service stopped")
	return rec, nil
}

// IsNotFound reports whether err from a reconciler call means the underlying
// configuration file is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrConfigNotFound)
}
