package service

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"

	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// DerivationService turns an access code and a per-installation salt into an
// encryption key using PBKDF2-HMAC-SHA256.
//
// Derivation is deterministic: the same code and salt always produce the same
// key, which is what lets a user unlock their records on the same installation
// without any key material ever being stored in plaintext. Two installations
// never share a salt, so the same access code yields unrelated keys on
// different devices.
//
// Security considerations:
//   - The iteration count is configurable but never below MinIterations.
//   - The access code itself is never persisted in any form.
//   - Callers own the returned key and must Zero it when done.
type DerivationService struct {
	iterations    int
	minCodeLength int
}

// MinIterations is the floor for the PBKDF2 iteration count. Configured values
// below this are raised to it.
const MinIterations = 100000

// NewDerivationService creates a DerivationService with the given PBKDF2
// iteration count and minimum access code length.
func NewDerivationService(iterations, minCodeLength int) *DerivationService {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return &DerivationService{iterations: iterations, minCodeLength: minCodeLength}
}

// DeriveKey derives a 32-byte encryption key from an access code and salt.
//
// Returns ErrWeakAccessCode when the code is shorter than the configured
// minimum and ErrMissingSalt when no salt is provided. A salt of the wrong
// size means corrupted installation state and is also rejected.
func (s *DerivationService) DeriveKey(accessCode string, salt []byte) (*keysDomain.EncryptionKey, error) {
	if len(accessCode) < s.minCodeLength {
		return nil, keysDomain.ErrWeakAccessCode
	}
	if len(salt) == 0 {
		return nil, keysDomain.ErrMissingSalt
	}
	if len(salt) != keysDomain.SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d",
			keysDomain.ErrMissingSalt, keysDomain.SaltSize, len(salt))
	}

	keyBytes := pbkdf2.Key([]byte(accessCode), salt, s.iterations, keysDomain.KeySize, sha256.New)

	return &keysDomain.EncryptionKey{
		Bytes:     keyBytes,
		Source:    keysDomain.SourceDerived,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GenerateKey creates a fresh random 32-byte encryption key.
//
// Used for installations that opt out of access-code derivation; the key only
// survives restarts through the wrapped backup.
func (s *DerivationService) GenerateKey() (*keysDomain.EncryptionKey, error) {
	keyBytes := make([]byte, keysDomain.KeySize)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return &keysDomain.EncryptionKey{
		Bytes:     keyBytes,
		Source:    keysDomain.SourceGenerated,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GenerateSalt creates a fresh random derivation salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, keysDomain.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
