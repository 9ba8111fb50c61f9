package service

import (
	"context"
	"crypto/rand"
	"time"

	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// backupAAD binds wrapped backups to their purpose so a backup blob cannot be
// replayed as some other ciphertext.
const backupAAD = "caresync-key-backup"

// DeviceVaultService wraps and unwraps the session key under a device secret.
//
// The device secret is a random 32-byte value created on first use and held in
// the installation's state directory. Wrapping the session key under it gives
// a backup that survives restarts and derivation outages without ever
// persisting the key in plaintext. Vault failures are reported as
// ErrVaultUnavailable so the session can degrade instead of failing hard.
type DeviceVaultService struct {
	repo        StateRepository
	aeadManager AEADManager
	algorithm   keysDomain.Algorithm
}

// NewDeviceVaultService creates a DeviceVaultService using the given state
// repository and cipher algorithm.
func NewDeviceVaultService(
	repo StateRepository,
	aeadManager AEADManager,
	algorithm keysDomain.Algorithm,
) *DeviceVaultService {
	return &DeviceVaultService{
		repo:        repo,
		aeadManager: aeadManager,
		algorithm:   algorithm,
	}
}

// Wrap encrypts the key under the device secret and persists the backup.
// The input key is not consumed; the caller still owns it.
func (s *DeviceVaultService) Wrap(ctx context.Context, key *keysDomain.EncryptionKey) (*keysDomain.WrappedBackup, error) {
	secret, err := s.getOrCreateSecret(ctx)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(secret)

	cipher, err := s.aeadManager.CreateCipher(secret, s.algorithm)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create backup cipher")
	}

	ciphertext, nonce, err := cipher.Encrypt(key.Bytes, []byte(backupAAD))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to wrap key")
	}

	backup := &keysDomain.WrappedBackup{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Algorithm:  s.algorithm,
		Source:     key.Source,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.SaveBackup(ctx, backup); err != nil {
		return nil, apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}

	return backup, nil
}

// Unwrap restores the session key from the persisted backup.
//
// Returns ErrBackupNotFound when no backup exists, ErrVaultUnavailable when
// the device secret cannot be read, and ErrDecryptionFailed when the backup
// fails authentication (tampered blob or foreign device secret).
func (s *DeviceVaultService) Unwrap(ctx context.Context) (*keysDomain.EncryptionKey, error) {
	backup, err := s.repo.LoadBackup(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, keysDomain.ErrBackupNotFound
		}
		return nil, apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}

	secret, err := s.repo.LoadDeviceSecret(ctx)
	if err != nil {
		return nil, apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}
	defer keysDomain.Zero(secret)

	cipher, err := s.aeadManager.CreateCipher(secret, backup.Algorithm)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create backup cipher")
	}

	keyBytes, err := cipher.Decrypt(backup.Ciphertext, backup.Nonce, []byte(backupAAD))
	if err != nil {
		return nil, keysDomain.ErrDecryptionFailed
	}

	return &keysDomain.EncryptionKey{
		Bytes:     keyBytes,
		Source:    keysDomain.SourceRestored,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HasBackup reports whether a wrapped backup exists.
func (s *DeviceVaultService) HasBackup(ctx context.Context) (bool, error) {
	if _, err := s.repo.LoadBackup(ctx); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}
	return true, nil
}

func (s *DeviceVaultService) getOrCreateSecret(ctx context.Context) ([]byte, error) {
	secret, err := s.repo.LoadDeviceSecret(ctx)
	if err == nil {
		return secret, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}

	secret = make([]byte, keysDomain.DeviceSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate device secret")
	}

	if err := s.repo.SaveDeviceSecret(ctx, secret); err != nil {
		keysDomain.Zero(secret)
		return nil, apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}

	return secret, nil
}
