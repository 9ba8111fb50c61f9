// Package service provides the key lifecycle services: derivation from access
// codes, AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305), the device secret
// vault, KMS escrow, and the session key state machine.
package service

import (
	"context"

	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg keysDomain.Algorithm) (AEAD, error)
}

// NonceSource produces unique nonces for AEAD encryption. Implementations must
// never return the same nonce twice for the lifetime of a key.
type NonceSource interface {
	// Next returns the next unique 12-byte nonce.
	Next() ([]byte, error)
}

// StateRepository persists per-installation key material state: the derivation
// salt, the device secret, the wrapped backup, the key check probe, and the
// device fingerprint. Load methods return errors.ErrNotFound when the value
// has never been written.
type StateRepository interface {
	LoadSalt(ctx context.Context) ([]byte, error)
	SaveSalt(ctx context.Context, salt []byte) error

	LoadDeviceSecret(ctx context.Context) ([]byte, error)
	SaveDeviceSecret(ctx context.Context, secret []byte) error

	LoadBackup(ctx context.Context) (*keysDomain.WrappedBackup, error)
	SaveBackup(ctx context.Context, backup *keysDomain.WrappedBackup) error

	LoadKeyCheck(ctx context.Context) (*keysDomain.KeyCheck, error)
	SaveKeyCheck(ctx context.Context, check *keysDomain.KeyCheck) error

	LoadDeviceID(ctx context.Context) (string, error)
	SaveDeviceID(ctx context.Context, deviceID string) error

	LoadEscrowBlob(ctx context.Context) ([]byte, error)
	SaveEscrowBlob(ctx context.Context, blob []byte) error
}
