package domain

import (
	"time"
)

// EncryptionKey is the symmetric key protecting records at rest.
//
// The key never leaves the process: it is derived from an access code, restored
// from the wrapped backup, or generated fresh, and is zeroed when the session
// locks or the key expires.
//
// Fields:
//   - Bytes: The raw 32-byte key material. Excluded from JSON serialization.
//   - Source: How the key entered the session (derived, restored, generated).
//   - CreatedAt: When the key entered the session. Drives expiry.
type EncryptionKey struct {
	Bytes     []byte    `json:"-"`
	Source    KeySource `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// KeySource records how a session key was obtained.
type KeySource string

const (
	// SourceDerived means the key was derived from an access code and salt.
	SourceDerived KeySource = "derived"
	// SourceRestored means the key was unwrapped from the device backup.
	SourceRestored KeySource = "restored"
	// SourceGenerated means the key was generated from a secure random source.
	SourceGenerated KeySource = "generated"
)

// Zero clears the key material from memory.
func (k *EncryptionKey) Zero() {
	if k == nil {
		return
	}
	Zero(k.Bytes)
	k.Bytes = nil
}

// ExpiresAt returns the instant the key ages out given the maximum key age.
func (k *EncryptionKey) ExpiresAt(maxAge time.Duration) time.Time {
	return k.CreatedAt.Add(maxAge)
}

// Expired reports whether the key has aged out at the given instant.
func (k *EncryptionKey) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return !now.Before(k.ExpiresAt(maxAge))
}

// WrappedBackup is the session key encrypted under the device secret.
//
// The backup is persisted so the key survives process restarts and derivation
// outages: while degraded, the session restores from this blob instead of
// re-deriving. The plaintext key is never persisted.
type WrappedBackup struct {
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	Algorithm  Algorithm `json:"algorithm"`
	Source     KeySource `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// KeyCheck is a small AEAD-sealed probe written on first unlock. Decrypting it
// with a candidate key proves the access code is correct without storing any
// digest of the code itself.
type KeyCheck struct {
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	Algorithm  Algorithm `json:"algorithm"`
	CreatedAt  time.Time `json:"created_at"`
}

// KeyCheckPlaintext is the fixed probe value sealed inside a KeyCheck.
const KeyCheckPlaintext = "caresync-key-check-v1"
