package domain

import (
	"context"
)

// EscrowKeeper wraps and unwraps key material with an external KMS.
// *secrets.Keeper from gocloud.dev implements this interface.
type EscrowKeeper interface {
	// Encrypt encrypts plaintext using the KMS-held key.
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)

	// Decrypt decrypts ciphertext using the KMS-held key.
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)

	// Close releases resources held by the keeper.
	Close() error
}
