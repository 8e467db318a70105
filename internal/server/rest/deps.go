package rest

import (
	"context"

	"github.com/ersimransingh/email-service-sub001/internal/activity"
	"github.com/ersimransingh/email-service-sub001/internal/service"
	"github.com/ersimransingh/email-service-sub001/internal/store"
)

// Reconciler is the subset of service.Reconciler used by the handlers.
// Defining an interface allows handlers to be tested with a mock without a
// real store or database.
type Reconciler interface {
	// Snapshot computes the effective dashboard status.
	Snapshot(ctx context.Context) (service.Snapshot, error)

	// Start persists the "running" intent on behalf of an operator.
	Start(ctx context.Context, by string) (store.ServiceStatusRecord, error)

	// Stop persists the "stopped" intent.
	Stop(ctx context.Context) (store.ServiceStatusRecord, error)
}

// ConfigStore is the subset of store.Store used by the config and
// test-email handlers.
type ConfigStore interface {
	LoadDatabaseConfig() (store.ConnectionConfig, error)
	SaveDatabaseConfig(cfg store.ConnectionConfig) error
	LoadScheduleConfig() (store.ScheduleConfig, error)
	SaveScheduleConfig(cfg store.ScheduleConfig) error

	// RecordEmailOutcome folds one dispatch attempt into the persisted
	// email counters.
	RecordEmailOutcome(success bool) error
}

// ActivityLog records operator actions and serves them back to the
// dashboard, newest first.
type ActivityLog interface {
	Record(ctx context.Context, kind, actor string, detail map[string]any) error
	Recent(ctx context.Context, n int) ([]activity.Event, error)
}
