package domain

import (
	"github.com/allisson/caresync/internal/errors"
)

// Key lifecycle error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors
// to provide context for key material failures. All errors are mapped to
// appropriate HTTP status codes by the error handling layer.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	//
	// Supported algorithms: AESGCM (AES-256-GCM), ChaCha20 (ChaCha20-Poly1305).
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid.
	//
	// All keys must be exactly 32 bytes (256 bits) for both AES-256-GCM and
	// ChaCha20-Poly1305.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrWeakAccessCode indicates the unlock code does not meet the configured
	// minimum length.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrWeakAccessCode = errors.Wrap(errors.ErrInvalidInput, "access code below minimum length")

	// ErrMissingSalt indicates no derivation salt exists for this installation.
	// The installation must be initialized before keys can be derived.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrMissingSalt = errors.Wrap(errors.ErrInvalidInput, "derivation salt not initialized")

	// ErrDecryptionFailed indicates a decryption operation failed.
	//
	// This error can occur due to:
	//   - Wrong key used (e.g., an unlock attempt with the wrong access code)
	//   - Ciphertext has been tampered with (authentication failure)
	//   - Corrupted encrypted data
	//
	// For security reasons, the specific cause is not disclosed to prevent
	// information leakage that could aid attackers.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrKeyUnavailable indicates no usable session key is held: the session is
	// locked, expired, or degraded without a restorable backup.
	//
	// HTTP Status: 401 Unauthorized
	ErrKeyUnavailable = errors.Wrap(errors.ErrUnauthorized, "session key unavailable")

	// ErrVaultUnavailable indicates the device secret vault cannot be reached.
	// The session degrades instead of failing hard.
	//
	// HTTP Status: 503 Service Unavailable
	ErrVaultUnavailable = errors.Wrap(errors.ErrUnavailable, "device secret vault unavailable")

	// ErrBackupNotFound indicates no wrapped key backup exists to restore from.
	//
	// HTTP Status: 404 Not Found
	ErrBackupNotFound = errors.Wrap(errors.ErrNotFound, "wrapped key backup not found")
)
