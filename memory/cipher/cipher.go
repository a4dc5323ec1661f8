// Package cipher provides authenticated encryption for stored memory
// text. Keys are derived from a configured secret with a slow KDF so
// the same secret always yields the same suite, and every ciphertext
// is sealed with a fresh random nonce.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfSalt is deliberately static: derivation must be
	// deterministic so restarts can decrypt existing records.
	kdfSalt = "memorylink_salt_2024"

	// kdfIterations is the PBKDF2 iteration count.
	kdfIterations = 100000

	// keySize is the AES-256 key length.
	keySize = 32

	// nonceSize is the GCM standard nonce size.
	nonceSize = 12
)

// ErrEmptySecret is returned when a suite is derived from an empty secret.
var ErrEmptySecret = errors.New("cipher: secret must not be empty")

// DecryptionError reports a ciphertext that is malformed or was sealed
// under a different suite. It exists so callers can tell "cannot read
// this record" apart from generic storage failures.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Suite is a derived symmetric key bound to AES-256-GCM.
type Suite struct {
	aead cipher.AEAD
}

// DeriveSuite derives a Suite from an arbitrary-length secret using
// PBKDF2-HMAC-SHA256. The same secret always yields the same suite.
func DeriveSuite(secret string) (*Suite, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Suite{aead: aead}, nil
}

// Encrypt seals plaintext and returns a text-safe base64url encoding
// of [nonce] + [ciphertext]. The nonce is random per call, so equal
// plaintexts never produce equal ciphertexts. Empty input passes
// through unchanged.
func (s *Suite) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends the encrypted+authenticated ciphertext to the nonce.
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt inverts Encrypt. Empty input passes through unchanged.
// Malformed or wrong-key ciphertext yields a DecryptionError, never
// silent garbage.
func (s *Suite) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	sealed, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptionError{Err: fmt.Errorf("decode: %w", err)}
	}
	if len(sealed) < nonceSize {
		return "", &DecryptionError{Err: errors.New("ciphertext too short")}
	}

	nonce, data := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	return string(plaintext), nil
}

// GenerateSecret produces a random secret for deployments that have
// not configured one. Records encrypted under a generated secret are
// unreadable after restart; production should treat reliance on this
// as a configuration error.
func GenerateSecret() (string, error) {
	raw := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
