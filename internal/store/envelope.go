package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// envelopeVersion is written into every persisted envelope. Bump when the
// ciphertext layout changes.
const envelopeVersion = "1.0"

// Envelope is the JSON wrapper written to disk for every encrypted
// configuration file. Data holds the base64-encoded nonce+ciphertext.
type Envelope struct {
	Encrypted bool   `json:"encrypted"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Data      string `json:"data"`
}

// deriveKey turns the deployment passphrase into a fixed-size AES-256 key.
func deriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

// encrypt JSON-encodes v and seals it with AES-256-GCM under key. The random
// nonce is prepended to the ciphertext and the whole blob base64-encoded.
func encrypt(key []byte, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: marshal plaintext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("store: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("store: new GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("store: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt: base64-decode, split nonce, open, JSON-decode
// into out. Any failure along the way is reported as ErrDecryptionFailed so
// that a wrong key never yields a partially-parsed object.
func decrypt(key []byte, data string, out any) error {
	sealed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	if len(sealed) < gcm.NonceSize() {
		return fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: plaintext is not valid JSON: %v", ErrDecryptionFailed, err)
	}
	return nil
}

// newEnvelope seals v under key and wraps it with timestamp and version
// metadata.
func newEnvelope(key []byte, v any, now time.Time) (*Envelope, error) {
	data, err := encrypt(key, v)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Encrypted: true,
		Timestamp: now.UTC().Format(time.RFC3339),
		Version:   envelopeVersion,
		Data:      data,
	}, nil
}
