// Package store persists the encrypted connection and schedule configuration
// envelopes and the plain-JSON service status record for the email dispatch
// worker.
//
// # Envelope format
//
// database.config and email.config are JSON envelopes of the form
//
//	{"encrypted": true, "timestamp": "...", "version": "1.0", "data": "..."}
//
// where data is AES-256-GCM ciphertext (random nonce prepended, base64).
// The key is derived from the deployment passphrase with SHA-256. A file
// whose ciphertext does not decrypt to valid JSON under the configured key
// is treated as corrupt and reported as ErrDecryptionFailed.
//
// # Secret masking
//
// API-facing payloads never carry real secrets: Masked copies substitute
// MaskSecret for the password fields. When a Save request arrives with the
// password equal to MaskSecret, the previously stored secret is substituted
// before re-encrypting; if no prior envelope exists the save fails with a
// ValidationError, since there is no secret to keep.
//
// # Write discipline
//
// All writes go through an atomic temp-file-and-rename replace, and status
// writes additionally serialise through a store-level mutex. Reads are
// lock-free: a concurrent reader always observes a complete JSON document
// that was current at some point, possibly one write behind.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// MaskSecret is the sentinel returned in place of real passwords in every
// API-facing payload. Its presence in a saved payload means "keep the
// previously stored secret". Eight bullet characters.
const MaskSecret = "••••••••"

// File names within the data directory.
const (
	databaseConfigFile = "database.config"
	emailConfigFile    = "email.config"
	statusFile         = "service.status"
)

// ConnectionConfig is the decrypted payload of database.config: the tuple
// needed to reach the dispatch database.
type ConnectionConfig struct {
	Server   string `json:"server"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Masked returns a copy with the password replaced by MaskSecret.
func (c ConnectionConfig) Masked() ConnectionConfig {
	c.Password = MaskSecret
	return c
}

// ScheduleConfig is the decrypted payload of email.config: the daily active
// window, dispatch interval, database timeouts (seconds), and the dashboard
// credentials.
type ScheduleConfig struct {
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	Interval            int    `json:"interval"`
	IntervalUnit        string `json:"intervalUnit"`
	DBRequestTimeout    int    `json:"dbRequestTimeout"`
	DBConnectionTimeout int    `json:"dbConnectionTimeout"`
	Username            string `json:"username"`
	Password            string `json:"password"`
}

// Masked returns a copy with the password replaced by MaskSecret.
func (c ScheduleConfig) Masked() ScheduleConfig {
	c.Password = MaskSecret
	return c
}

// Store reads and writes the persisted configuration envelopes and service
// status record under a single data directory. It is safe for concurrent
// use.
type Store struct {
	dir string
	key []byte

	// statusMu serialises status-record writers. Readers do not take it.
	statusMu sync.Mutex

	// now is the clock; replaced in tests.
	now func() time.Time
}

// New creates a Store rooted at dir using the given envelope passphrase.
// The directory is created lazily on first save.
func New(dir, passphrase string) *Store {
	return &Store{
		dir: dir,
		key: deriveKey(passphrase),
		now: time.Now,
	}
}

// SaveDatabaseConfig validates cfg, resolves the mask sentinel against the
// previously stored secret, and atomically overwrites database.config with a
// fresh envelope.
func (s *Store) SaveDatabaseConfig(cfg ConnectionConfig) error {
	if err := validateConnection(cfg); err != nil {
		return err
	}

	if cfg.Password == MaskSecret {
		prev, err := s.LoadDatabaseConfig()
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				return &ValidationError{Field: "password", Reason: "is required"}
			}
			return err
		}
		cfg.Password = prev.Password
	} else if cfg.Password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}

	return s.writeEnvelope(databaseConfigFile, cfg)
}

// LoadDatabaseConfig reads and decrypts database.config.
func (s *Store) LoadDatabaseConfig() (ConnectionConfig, error) {
	var cfg ConnectionConfig
	if err := s.readEnvelope(databaseConfigFile, &cfg); err != nil {
		return ConnectionConfig{}, err
	}
	return cfg, nil
}

// SaveScheduleConfig validates cfg, resolves the mask sentinel against the
// previously stored secret, and atomically overwrites email.config.
func (s *Store) SaveScheduleConfig(cfg ScheduleConfig) error {
	if err := validateSchedule(cfg); err != nil {
		return err
	}

	if cfg.Password == MaskSecret {
		prev, err := s.LoadScheduleConfig()
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				return &ValidationError{Field: "password", Reason: "is required"}
			}
			return err
		}
		cfg.Password = prev.Password
	} else if cfg.Password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}

	return s.writeEnvelope(emailConfigFile, cfg)
}

// LoadScheduleConfig reads and decrypts email.config.
func (s *Store) LoadScheduleConfig() (ScheduleConfig, error) {
	var cfg ScheduleConfig
	if err := s.readEnvelope(emailConfigFile, &cfg); err != nil {
		return ScheduleConfig{}, err
	}
	return cfg, nil
}

// validateConnection checks the required non-secret connection fields.
// The password is resolved separately because of mask handling.
func validateConnection(cfg ConnectionConfig) error {
	if cfg.Server == "" {
		return &ValidationError{Field: "server", Reason: "is required"}
	}
	if cfg.Port == "" {
		return &ValidationError{Field: "port", Reason: "is required"}
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return &ValidationError{Field: "port", Reason: "must be numeric"}
	}
	if cfg.User == "" {
		return &ValidationError{Field: "user", Reason: "is required"}
	}
	if cfg.Database == "" {
		return &ValidationError{Field: "database", Reason: "is required"}
	}
	return nil
}

// validateSchedule checks the schedule fields. Start and end are same-day
// clock times; windows that cross midnight are not modelled.
func validateSchedule(cfg ScheduleConfig) error {
	if !validClock(cfg.StartTime) {
		return &ValidationError{Field: "startTime", Reason: "must be HH:MM"}
	}
	if !validClock(cfg.EndTime) {
		return &ValidationError{Field: "endTime", Reason: "must be HH:MM"}
	}
	if cfg.Interval <= 0 {
		return &ValidationError{Field: "interval", Reason: "must be a positive integer"}
	}
	if cfg.IntervalUnit != "minutes" && cfg.IntervalUnit != "hours" {
		return &ValidationError{Field: "intervalUnit", Reason: `must be "minutes" or "hours"`}
	}
	if cfg.Username == "" {
		return &ValidationError{Field: "username", Reason: "is required"}
	}
	return nil
}

// validClock reports whether s is a well-formed "HH:MM" clock time.
func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// writeEnvelope seals v into an envelope and atomically replaces the target
// file, creating the data directory on first save.
func (s *Store) writeEnvelope(name string, v any) error {
	env, err := newEnvelope(s.key, v, s.now())
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal envelope: %w", err)
	}
	return s.writeFileAtomic(name, data)
}

// readEnvelope loads the named envelope and decrypts its payload into out.
func (s *Store) readEnvelope(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		return fmt.Errorf("store: read %s: %w", name, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFormat, name, err)
	}
	if !env.Encrypted || env.Data == "" {
		return fmt.Errorf("%w: %s: missing encrypted flag or data", ErrInvalidFormat, name)
	}

	return decrypt(s.key, env.Data, out)
}

// writeFileAtomic writes data to a temp file in the data directory and
// renames it over the target so readers never observe a partial document.
func (s *Store) writeFileAtomic(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("store: create data dir: %w", err)
	}

	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("store: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("store: replace %s: %w", name, err)
	}
	return nil
}
