package service

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// AESGCMCipher implements the AEAD interface using AES-256-GCM.
//
// AES-GCM provides authenticated encryption with associated data, combining
// the confidentiality of AES encryption with the authenticity of GMAC. This
// implementation uses a 256-bit key and draws nonces from an injected
// NonceSource rather than generating them per call, so every ciphertext
// produced under a key carries a provably unique nonce.
//
// Security properties:
//   - 256-bit key size
//   - 12-byte nonce supplied by the NonceSource
//   - 16-byte authentication tag appended to the ciphertext
//
// Thread safety: the cipher holds no mutable state beyond the NonceSource,
// which is required to be safe for concurrent use.
type AESGCMCipher struct {
	aead   cipher.AEAD
	nonces NonceSource
}

// NewAESGCM creates a new AES-256-GCM cipher instance.
//
// The key must be exactly 32 bytes (256 bits). Keys should come from the key
// derivation service or crypto/rand, never from raw user input.
func NewAESGCM(key []byte, nonces NonceSource) (*AESGCMCipher, error) {
	if len(key) != 32 {
		return nil, errors.New("key must be exactly 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead, nonces: nonces}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM with optional additional
// authenticated data.
//
// The AAD is authenticated but not encrypted; binding a record's ciphertext to
// its document id prevents a valid ciphertext from being replayed under a
// different id. Pass nil when no context needs to be authenticated.
//
// The nonce comes from the cipher's NonceSource and must be stored alongside
// the ciphertext for later decryption.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce, err = a.nonces.Next()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = a.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM with the provided nonce and AAD.
//
// The same AAD used during encryption must be provided. The authentication tag
// is verified before any plaintext is returned; on failure no plaintext is
// produced.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
