package service

import (
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// AEADManagerService implements the AEADManager interface for creating AEAD cipher instances.
//
// Every cipher it creates shares the manager's NonceSource, so nonce uniqueness
// holds across all ciphers created for the same key within a process.
type AEADManagerService struct {
	nonces NonceSource
}

// NewAEADManager creates a new AEADManagerService drawing nonces from the given source.
func NewAEADManager(nonces NonceSource) *AEADManagerService {
	return &AEADManagerService{nonces: nonces}
}

// CreateCipher creates an AEAD cipher instance for the specified algorithm.
// Returns ErrInvalidKeySize if key is not 32 bytes or ErrUnsupportedAlgorithm if algorithm is unknown.
func (am *AEADManagerService) CreateCipher(key []byte, alg keysDomain.Algorithm) (AEAD, error) {
	// Validate key size
	if len(key) != keysDomain.KeySize {
		return nil, keysDomain.ErrInvalidKeySize
	}

	// Create cipher based on algorithm
	switch alg {
	case keysDomain.AESGCM:
		return NewAESGCM(key, am.nonces)
	case keysDomain.ChaCha20:
		return NewChaCha20Poly1305(key, am.nonces)
	default:
		return nil, keysDomain.ErrUnsupportedAlgorithm
	}
}
