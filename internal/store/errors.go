package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Load operations. Callers distinguish them with
// errors.Is to map onto presentation-layer status codes.
var (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("store: configuration not found")

	// ErrInvalidFormat indicates the persisted file is not a well-formed
	// encrypted envelope (missing the encrypted flag or ciphertext).
	ErrInvalidFormat = errors.New("store: invalid configuration format")

	// ErrDecryptionFailed indicates the envelope ciphertext could not be
	// decrypted to a valid configuration object, typically because the
	// deployment encryption key is wrong or the file is corrupt.
	ErrDecryptionFailed = errors.New("store: decryption failed")
)

// ValidationError reports a missing or malformed configuration field
// submitted to a Save operation. It is returned before any encryption work.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("store: validation: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
