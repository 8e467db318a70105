//go:build integration

// Run with:
//
//	go test -tags integration -v ./internal/probe/...
//
// Requires Docker (for testcontainers-go) and a reachable Docker socket.
package probe_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ersimransingh/email-service-sub001/internal/probe"
	"github.com/ersimransingh/email-service-sub001/internal/store"
)

// setupPostgres starts a PostgreSQL container and returns the connection
// tuple the probe expects, plus a cleanup func.
func setupPostgres(t *testing.T) (store.ConnectionConfig, func()) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("dispatch_test"),
		tcpostgres.WithUsername("dispatch"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("get connection string: %v", err)
	}

	u, err := url.Parse(connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("parse connection string %q: %v", connStr, err)
	}

	cfg := store.ConnectionConfig{
		Server:   u.Hostname(),
		Port:     u.Port(),
		User:     "dispatch",
		Password: "secret",
		Database: "dispatch_test",
	}

	cleanup := func() {
		_ = pgContainer.Terminate(ctx)
	}
	return cfg, cleanup
}

func TestProbe_LiveDatabase(t *testing.T) {
	cfg, cleanup := setupPostgres(t)
	defer cleanup()

	p := probe.New(probe.Timeouts{Connect: 5 * time.Second, Request: 10 * time.Second})
	res := p.Test(context.Background(), cfg, probe.Timeouts{})

	if !res.Connected {
		t.Fatalf("expected connected, got reason=%q message=%q", res.Reason, res.Message)
	}
	if res.ResponseTimeMs < 0 {
		t.Errorf("response time must be non-negative, got %d", res.ResponseTimeMs)
	}
	if res.Reason != probe.ReasonNone {
		t.Errorf("reason: want none, got %q", res.Reason)
	}
}

func TestProbe_BadPassword(t *testing.T) {
	cfg, cleanup := setupPostgres(t)
	defer cleanup()

	cfg.Password = "wrong"
	p := probe.New(probe.Timeouts{Connect: 5 * time.Second, Request: 10 * time.Second})
	res := p.Test(context.Background(), cfg, probe.Timeouts{})

	if res.Connected {
		t.Fatal("expected authentication failure, got connected")
	}
	if res.Reason != probe.ReasonAuth {
		t.Errorf("reason: want %q, got %q (message %q)", probe.ReasonAuth, res.Reason, res.Message)
	}
}

func TestProbe_MissingDatabase(t *testing.T) {
	cfg, cleanup := setupPostgres(t)
	defer cleanup()

	cfg.Database = "does_not_exist"
	p := probe.New(probe.Timeouts{Connect: 5 * time.Second, Request: 10 * time.Second})
	res := p.Test(context.Background(), cfg, probe.Timeouts{})

	if res.Connected {
		t.Fatal("expected resource-not-found failure, got connected")
	}
	if res.Reason != probe.ReasonNotFound {
		t.Errorf("reason: want %q, got %q (message %q)", probe.ReasonNotFound, res.Reason, res.Message)
	}
}

func TestProbe_ReportsLatency(t *testing.T) {
	cfg, cleanup := setupPostgres(t)
	defer cleanup()

	p := probe.New(probe.Timeouts{Connect: 5 * time.Second, Request: 10 * time.Second})

	for i := 0; i < 3; i++ {
		res := p.Test(context.Background(), cfg, probe.Timeouts{})
		if !res.Connected {
			t.Fatalf("probe %d failed: %s", i, res.Message)
		}
		if res.ResponseTimeMs > 10_000 {
			t.Errorf("probe %d: implausible latency %dms", i, res.ResponseTimeMs)
		}
	}
}
