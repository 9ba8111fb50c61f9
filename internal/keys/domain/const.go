package domain

// Algorithm represents the cryptographic algorithm used for encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD),
// ensuring both confidentiality and authenticity of encrypted records. AEAD prevents both
// unauthorized reading and tampering with encrypted data.
//
// Algorithm selection guidelines:
//   - Use AESGCM on modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on mobile devices or systems without AES-NI
//   - Both provide equivalent 256-bit security when used correctly
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// AES-GCM (Advanced Encryption Standard in Galois/Counter Mode) combines
	// AES encryption with GMAC authentication. It uses a 256-bit key and
	// provides excellent performance on hardware with AES-NI acceleration.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	//
	// ChaCha20-Poly1305 combines the ChaCha20 stream cipher with the Poly1305 MAC
	// for authentication. It's designed for high performance on platforms without
	// AES hardware acceleration and is resistant to timing attacks.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the required key length in bytes for both supported algorithms.
	KeySize = 32

	// SaltSize is the length in bytes of the per-installation derivation salt.
	SaltSize = 32

	// DeviceSecretSize is the length in bytes of the hardware-bound device secret.
	DeviceSecretSize = 32

	// NonceSize is the AEAD nonce length in bytes (96 bits) for both algorithms.
	NonceSize = 12
)

// SessionState represents the lifecycle state of the session key.
//
// State transitions:
//
//	Locked -> Unlocking -> Unlocked -> Locked (explicit lock or expiry)
//	Unlocking -> Degraded (derivation source unavailable)
//	Degraded -> Unlocked (backup restore succeeds)
//	Degraded -> Locked (explicit lock)
type SessionState string

const (
	// StateLocked means no key material is held in memory.
	StateLocked SessionState = "locked"

	// StateUnlocking means a derivation or restore attempt is in flight.
	StateUnlocking SessionState = "unlocking"

	// StateUnlocked means a valid key is held and records can be read and written.
	StateUnlocked SessionState = "unlocked"

	// StateDegraded means the primary derivation path failed and the session is
	// attempting recovery from the wrapped backup.
	StateDegraded SessionState = "degraded"
)
