package service

import (
	"context"
	"fmt"
	"time"

	"gocloud.dev/secrets"

	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// OpenEscrowKeeper opens a secrets.Keeper for the configured KMS provider
// using the keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func OpenEscrowKeeper(ctx context.Context, keyURI string) (keysDomain.EscrowKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open escrow keeper: %w", err)
	}
	return keeper, nil
}

// EscrowService keeps a KMS-wrapped copy of the session key for organizational
// recovery. It complements the device vault: the vault backup dies with the
// device secret, the escrow copy can be recovered wherever the KMS key is
// reachable. Escrow is optional and only active when a KMS key URI is configured.
type EscrowService struct {
	keeper keysDomain.EscrowKeeper
	repo   StateRepository
}

// NewEscrowService creates an EscrowService around the given keeper.
func NewEscrowService(keeper keysDomain.EscrowKeeper, repo StateRepository) *EscrowService {
	return &EscrowService{keeper: keeper, repo: repo}
}

// Escrow wraps the key with the KMS and persists the blob.
func (s *EscrowService) Escrow(ctx context.Context, key *keysDomain.EncryptionKey) error {
	blob, err := s.keeper.Encrypt(ctx, key.Bytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to escrow key")
	}

	if err := s.repo.SaveEscrowBlob(ctx, blob); err != nil {
		return apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}

	return nil
}

// Recover unwraps the escrowed key with the KMS.
func (s *EscrowService) Recover(ctx context.Context) (*keysDomain.EncryptionKey, error) {
	blob, err := s.repo.LoadEscrowBlob(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, keysDomain.ErrBackupNotFound
		}
		return nil, apperrors.Wrap(keysDomain.ErrVaultUnavailable, err.Error())
	}

	keyBytes, err := s.keeper.Decrypt(ctx, blob)
	if err != nil {
		return nil, keysDomain.ErrDecryptionFailed
	}
	if len(keyBytes) != keysDomain.KeySize {
		keysDomain.Zero(keyBytes)
		return nil, keysDomain.ErrInvalidKeySize
	}

	return &keysDomain.EncryptionKey{
		Bytes:     keyBytes,
		Source:    keysDomain.SourceRestored,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Close releases the underlying keeper.
func (s *EscrowService) Close() error {
	return s.keeper.Close()
}
