// Package config provides YAML configuration loading and validation for the
// email dispatch admin server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level runtime configuration for the admin server.
type Config struct {
	// ListenAddr is the HTTP listen address for the admin API
	// (e.g. ":8080"). Defaults to ":8080" when omitted.
	ListenAddr string `yaml:"listen_addr"`

	// DataDir is the directory holding the persisted configuration
	// envelopes (database.config, email.config), the service.status file,
	// and the activity database. Defaults to "./data" when omitted.
	DataDir string `yaml:"data_dir"`

	// EncryptionKey is the passphrase used to encrypt and decrypt persisted
	// configuration envelopes. Required; there is no built-in default and a
	// missing key is a fatal startup error.
	EncryptionKey string `yaml:"encryption_key"`

	// Auth holds the JWT settings for the admin API.
	Auth AuthConfig `yaml:"auth"`

	// Probe holds the connectivity-probe timeout defaults. Per-request
	// timeouts stored in the email schedule configuration override these.
	Probe ProbeConfig `yaml:"probe"`

	// Mailer holds the SMTP endpoint used for operator test emails.
	Mailer MailerConfig `yaml:"mailer"`

	// Signing holds the external signing application settings.
	Signing SigningConfig `yaml:"signing"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`
}

// AuthConfig holds JWT token settings for the admin API.
type AuthConfig struct {
	// Secret is the HMAC secret used to sign and verify HS256 tokens.
	// Required.
	Secret string `yaml:"secret"`

	// TokenTTL is how long an issued token stays valid. Defaults to 8h.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// ProbeConfig holds default timeouts for the database connectivity probe.
type ProbeConfig struct {
	// ConnectTimeout bounds the TCP connect + handshake phase.
	// Defaults to 5s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout bounds the liveness query. Defaults to 10s.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MailerConfig holds the SMTP endpoint for test-email dispatch checks.
type MailerConfig struct {
	// SMTPAddr is the host:port of the SMTP relay. Optional; when empty,
	// test emails report failure without dialling anything.
	SMTPAddr string `yaml:"smtp_addr"`
}

// SigningConfig holds the path to the external native signing application.
type SigningConfig struct {
	// BinaryPath is the path to the signing executable. Optional; when
	// empty or the binary is absent, signing is reported as unavailable.
	BinaryPath string `yaml:"binary_path"`
}

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates all required fields. It returns a typed error
// describing the first validation failure encountered.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 8 * time.Hour
	}
	if cfg.Probe.ConnectTimeout <= 0 {
		cfg.Probe.ConnectTimeout = 5 * time.Second
	}
	if cfg.Probe.RequestTimeout <= 0 {
		cfg.Probe.RequestTimeout = 10 * time.Second
	}
}

// validate checks that all required fields are populated and that enumerated
// fields contain only valid values.
func validate(cfg *Config) error {
	var errs []error

	if cfg.EncryptionKey == "" {
		errs = append(errs, errors.New("encryption_key is required"))
	}
	if cfg.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}
