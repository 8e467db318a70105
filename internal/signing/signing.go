// Package signing defines the call contract for the external native PDF
// signing application. The admin backend never inspects document contents
// or performs any cryptography itself; it shuttles bytes to and from the
// configured signing binary and reports whether that binary is usable.
package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Info describes the availability of the signing application.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Options configures a signing operation.
type Options struct {
	Certificate string `json:"certificate,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Signer is the collaborator contract consumed by the REST layer.
type Signer interface {
	Info(ctx context.Context) Info
	Configure(ctx context.Context, opts Options) error
	Sign(ctx context.Context, doc []byte, opts Options) ([]byte, error)
}

// Bridge delegates to the external signing binary via its command-line
// protocol: "version", "configure" (options as JSON on stdin), and "sign"
// (document on stdin, signed document on stdout).
type Bridge struct {
	// BinaryPath is the path to the signing executable. Empty means
	// signing is not configured for this deployment.
	BinaryPath string
}

// Info reports whether the signing binary exists and responds to its
// version command. Failures are folded into the returned Info; this call
// never errors.
func (b *Bridge) Info(ctx context.Context) Info {
	if b.BinaryPath == "" {
		return Info{Available: false, Error: "signing binary not configured"}
	}
	if _, err := os.Stat(b.BinaryPath); err != nil {
		return Info{Available: false, Error: fmt.Sprintf("signing binary not found: %v", err)}
	}

	out, err := exec.CommandContext(ctx, b.BinaryPath, "version").Output()
	if err != nil {
		return Info{Available: false, Error: fmt.Sprintf("signing binary unusable: %v", err)}
	}
	return Info{Available: true, Version: strings.TrimSpace(string(out))}
}

// Configure pushes signature options to the signing application.
func (b *Bridge) Configure(ctx context.Context, opts Options) error {
	if b.BinaryPath == "" {
		return fmt.Errorf("signing: binary not configured")
	}
	payload, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("signing: marshal options: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.BinaryPath, "configure")
	cmd.Stdin = bytes.NewReader(payload)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("signing: configure: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Sign streams doc through the signing application and returns the signed
// bytes. The document is passed opaquely; this process never parses it.
func (b *Bridge) Sign(ctx context.Context, doc []byte, opts Options) ([]byte, error) {
	if b.BinaryPath == "" {
		return nil, fmt.Errorf("signing: binary not configured")
	}

	args := []string{"sign"}
	if opts.Certificate != "" {
		args = append(args, "--certificate", opts.Certificate)
	}
	if opts.Reason != "" {
		args = append(args, "--reason", opts.Reason)
	}
	if opts.Location != "" {
		args = append(args, "--location", opts.Location)
	}

	cmd := exec.CommandContext(ctx, b.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader(doc)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("signing: sign: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
