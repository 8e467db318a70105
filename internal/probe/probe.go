// Package probe implements the bounded-timeout database connectivity check
// used by the status reconciler. A probe opens a single connection to the
// configured PostgreSQL server, runs a trivial liveness query, and reports
// reachability, elapsed time, and a closed error-reason classification.
//
// The classification is produced here, by the adapter that sees the raw
// transport error; callers never inspect error shapes themselves.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ersimransingh/email-service-sub001/internal/store"
)

// Reason is the closed enumeration of probe failure classes.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonRefused  Reason = "refused"
	ReasonTimeout  Reason = "timeout"
	ReasonAuth     Reason = "auth-failure"
	ReasonNotFound Reason = "resource-not-found"
	ReasonUnknown  Reason = "unknown"
)

// Timeouts bounds the two phases of a probe.
type Timeouts struct {
	Connect time.Duration
	Request time.Duration
}

// Result is the outcome of one connectivity test. Message carries the raw
// transport error text for server-side logging only; it must never be
// echoed to API clients.
type Result struct {
	Connected      bool
	ResponseTimeMs int64
	Reason         Reason
	Message        string
}

// Probe tests PostgreSQL reachability for a stored connection tuple.
type Probe struct {
	defaults Timeouts
}

// New creates a Probe with the given default timeouts, applied when the
// caller passes zero values.
func New(defaults Timeouts) *Probe {
	return &Probe{defaults: defaults}
}

// Test opens a connection to the configured server under the connect
// timeout, issues SELECT 1 under the request timeout, and measures the total
// elapsed time. The connection is closed on every exit path; close errors
// are swallowed and never mask the probe outcome.
func (p *Probe) Test(ctx context.Context, cfg store.ConnectionConfig, t Timeouts) Result {
	if t.Connect <= 0 {
		t.Connect = p.defaults.Connect
	}
	if t.Request <= 0 {
		t.Request = p.defaults.Request
	}

	connCfg, err := buildConnConfig(cfg, t.Connect)
	if err != nil {
		return failure(err)
	}

	started := time.Now()

	connectCtx, cancel := context.WithTimeout(ctx, t.Connect)
	defer cancel()
	conn, err := pgx.ConnectConfig(connectCtx, connCfg)
	if err != nil {
		return failure(err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		_ = conn.Close(closeCtx)
	}()

	queryCtx, queryCancel := context.WithTimeout(ctx, t.Request)
	defer queryCancel()

	var one int
	if err := conn.QueryRow(queryCtx, "SELECT 1").Scan(&one); err != nil {
		return failure(err)
	}

	return Result{
		Connected:      true,
		ResponseTimeMs: time.Since(started).Milliseconds(),
	}
}

// buildConnConfig assembles a pgx connection config from the stored tuple.
func buildConnConfig(cfg store.ConnectionConfig, connectTimeout time.Duration) (*pgx.ConnConfig, error) {
	port, err := strconv.ParseUint(cfg.Port, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("probe: invalid port %q: %w", cfg.Port, err)
	}

	cc, err := pgx.ParseConfig("")
	if err != nil {
		return nil, fmt.Errorf("probe: base config: %w", err)
	}
	cc.Host = cfg.Server
	cc.Port = uint16(port)
	cc.User = cfg.User
	cc.Password = cfg.Password
	cc.Database = cfg.Database
	cc.ConnectTimeout = connectTimeout
	return cc, nil
}

// failure builds a Result for err with its classified reason.
func failure(err error) Result {
	return Result{
		Connected: false,
		Reason:    Classify(err),
		Message:   err.Error(),
	}
}

// Classify maps a raw transport error onto the closed Reason enumeration.
// Unmapped errors fall back to ReasonUnknown; the raw message stays
// available on the Result for logging.
func Classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// Class 28: invalid authorization (bad password, unknown role).
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "28":
			return ReasonAuth
		// 3D000: database does not exist.
		case pgErr.Code == "3D000":
			return ReasonNotFound
		}
		return ReasonUnknown
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonRefused
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonNotFound
	}

	return ReasonUnknown
}
