package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersimransingh/email-service-sub001/internal/probe"
	"github.com/ersimransingh/email-service-sub001/internal/store"
)

// mockSource is a test double for the ConfigSource interface.
type mockSource struct {
	dbCfg     store.ConnectionConfig
	dbErr     error
	schedCfg  store.ScheduleConfig
	schedErr  error
	statusRec store.ServiceStatusRecord
	statusErr error

	setRunningCalls int
	setStoppedCalls int
}

func (m *mockSource) LoadDatabaseConfig() (store.ConnectionConfig, error) {
	return m.dbCfg, m.dbErr
}

func (m *mockSource) LoadScheduleConfig() (store.ScheduleConfig, error) {
	return m.schedCfg, m.schedErr
}

func (m *mockSource) LoadStatus() (store.ServiceStatusRecord, error) {
	return m.statusRec, m.statusErr
}

func (m *mockSource) SetRunning(by string) (store.ServiceStatusRecord, error) {
	m.setRunningCalls++
	rec := m.statusRec
	rec.Status = store.IntentRunning
	rec.StartedBy = by
	return rec, nil
}

func (m *mockSource) SetStopped() (store.ServiceStatusRecord, error) {
	m.setStoppedCalls++
	rec := m.statusRec
	rec.Status = store.IntentStopped
	return rec, nil
}

// mockProbe returns a canned result and records the tuple it was given.
type mockProbe struct {
	result   probe.Result
	lastCfg  store.ConnectionConfig
	lastTime probe.Timeouts
}

func (m *mockProbe) Test(_ context.Context, cfg store.ConnectionConfig, t probe.Timeouts) probe.Result {
	m.lastCfg = cfg
	m.lastTime = t
	return m.result
}

// midWindow is a reference instant inside the 09:00-17:00 window.
var midWindow = time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)

func baseSource() *mockSource {
	started := midWindow.Add(-time.Hour)
	return &mockSource{
		dbCfg: store.ConnectionConfig{
			Server: "db.internal", Port: "5432",
			User: "u", Password: "p", Database: "emails",
		},
		schedCfg: store.ScheduleConfig{
			StartTime: "09:00", EndTime: "17:00",
			Interval: 30, IntervalUnit: "minutes",
			DBConnectionTimeout: 5, DBRequestTimeout: 10,
			Username: "admin", Password: "pw",
		},
		statusRec: store.ServiceStatusRecord{
			Status:    store.IntentRunning,
			StartedAt: &started,
			StartedBy: "ops",
		},
	}
}

func newTestReconciler(src ConfigSource, p Prober) *Reconciler {
	r := New(src, p, nil)
	r.now = func() time.Time { return midWindow }
	return r
}

func TestSnapshot_RunningInsideWindow(t *testing.T) {
	src := baseSource()
	p := &mockProbe{result: probe.Result{Connected: true, ResponseTimeMs: 12}}
	r := newTestReconciler(src, p)

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, snap.Status)
	assert.True(t, snap.WindowActive)
	assert.True(t, snap.Database.Connected)
	assert.Equal(t, int64(12), snap.Database.ResponseTimeMs)
	require.NotNil(t, snap.NextRun)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), *snap.NextRun)
	assert.Equal(t, "ops", snap.StartedBy)
}

func TestSnapshot_ProbeFailureForcesError(t *testing.T) {
	// Persisted intent is "running" and the window is active, but a failed
	// probe takes precedence over both.
	src := baseSource()
	p := &mockProbe{result: probe.Result{
		Connected: false,
		Reason:    probe.ReasonRefused,
		Message:   "dial tcp 10.0.0.5:5432: connect: connection refused",
	}}
	r := newTestReconciler(src, p)

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err, "a failed probe is a display state, not a query error")

	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, string(probe.ReasonRefused), snap.Database.Reason)
	assert.Nil(t, snap.NextRun, "an errored service reports no next run")
	assert.False(t, snap.WindowActive)
}

func TestSnapshot_StoppedIntent(t *testing.T) {
	src := baseSource()
	src.statusRec.Status = store.IntentStopped
	p := &mockProbe{result: probe.Result{Connected: true}}
	r := newTestReconciler(src, p)

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, snap.Status)
	assert.True(t, snap.WindowActive, "window activity is reported even when stopped")
	assert.Nil(t, snap.NextRun, "a stopped service reports no next run")
}

func TestSnapshot_RunningOutsideWindow(t *testing.T) {
	src := baseSource()
	p := &mockProbe{result: probe.Result{Connected: true}}
	r := New(src, p, nil)
	r.now = func() time.Time { return time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC) }

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, snap.Status,
		"running intent outside the window reconciles to stopped")
	assert.False(t, snap.WindowActive)
	assert.Nil(t, snap.NextRun)
}

func TestSnapshot_MissingDatabaseConfig(t *testing.T) {
	src := baseSource()
	src.dbErr = store.ErrConfigNotFound
	r := newTestReconciler(src, &mockProbe{})

	_, err := r.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSnapshot_MissingScheduleConfig(t *testing.T) {
	src := baseSource()
	src.schedErr = store.ErrConfigNotFound
	r := newTestReconciler(src, &mockProbe{})

	_, err := r.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSnapshot_EmailStatsDefaultToZero(t *testing.T) {
	src := baseSource()
	src.statusRec.EmailStats = nil
	p := &mockProbe{result: probe.Result{Connected: true}}
	r := newTestReconciler(src, p)

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Zero(t, snap.EmailStats.TotalSent)
	assert.Zero(t, snap.EmailStats.TotalFailed)
	assert.Nil(t, snap.EmailStats.LastSentAt)
}

func TestSnapshot_PassesStoredTimeoutsToProbe(t *testing.T) {
	src := baseSource()
	p := &mockProbe{result: probe.Result{Connected: true}}
	r := newTestReconciler(src, p)

	_, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, p.lastTime.Connect)
	assert.Equal(t, 10*time.Second, p.lastTime.Request)
	assert.Equal(t, "db.internal", p.lastCfg.Server)
}

func TestStart_RequiresScheduleConfig(t *testing.T) {
	src := baseSource()
	src.schedErr = store.ErrConfigNotFound
	r := newTestReconciler(src, &mockProbe{})

	_, err := r.Start(context.Background(), "ops")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Zero(t, src.setRunningCalls)
}

func TestStartStop_PersistIntent(t *testing.T) {
	src := baseSource()
	r := newTestReconciler(src, &mockProbe{})

	rec, err := r.Start(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, store.IntentRunning, rec.Status)
	assert.Equal(t, "ops@example.com", rec.StartedBy)
	assert.Equal(t, 1, src.setRunningCalls)

	rec, err = r.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.IntentStopped, rec.Status)
	assert.Equal(t, 1, src.setStoppedCalls)
}
