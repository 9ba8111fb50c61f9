// Package repository persists per-installation key material state on the
// local filesystem. Records at rest live in the database; the small state
// files here (salt, device secret, wrapped backup, key check, device id,
// escrow blob) are what bootstrap access to them.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

const (
	saltFile         = "salt"
	deviceSecretFile = "device_secret"
	backupFile       = "key_backup.json"
	keyCheckFile     = "key_check.json"
	deviceIDFile     = "device_id"
	escrowFile       = "key_escrow"

	fileMode = 0o600
	dirMode  = 0o700
)

// FileStateRepository implements service.StateRepository over a state
// directory. Every file is written atomically (temp file + rename) with mode
// 0600 so a crash never leaves partial key material behind.
type FileStateRepository struct {
	dir string
}

// NewFileStateRepository creates the repository, creating the state directory
// when missing.
func NewFileStateRepository(dir string) (*FileStateRepository, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStateRepository{dir: dir}, nil
}

// LoadSalt returns the derivation salt.
func (r *FileStateRepository) LoadSalt(ctx context.Context) ([]byte, error) {
	return r.readFile(saltFile)
}

// SaveSalt persists the derivation salt.
func (r *FileStateRepository) SaveSalt(ctx context.Context, salt []byte) error {
	return r.writeFile(saltFile, salt)
}

// LoadDeviceSecret returns the device secret.
func (r *FileStateRepository) LoadDeviceSecret(ctx context.Context) ([]byte, error) {
	return r.readFile(deviceSecretFile)
}

// SaveDeviceSecret persists the device secret.
func (r *FileStateRepository) SaveDeviceSecret(ctx context.Context, secret []byte) error {
	return r.writeFile(deviceSecretFile, secret)
}

// LoadBackup returns the wrapped key backup.
func (r *FileStateRepository) LoadBackup(ctx context.Context) (*keysDomain.WrappedBackup, error) {
	data, err := r.readFile(backupFile)
	if err != nil {
		return nil, err
	}

	var backup keysDomain.WrappedBackup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("failed to decode key backup: %w", err)
	}
	return &backup, nil
}

// SaveBackup persists the wrapped key backup.
func (r *FileStateRepository) SaveBackup(ctx context.Context, backup *keysDomain.WrappedBackup) error {
	data, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("failed to encode key backup: %w", err)
	}
	return r.writeFile(backupFile, data)
}

// LoadKeyCheck returns the key check probe.
func (r *FileStateRepository) LoadKeyCheck(ctx context.Context) (*keysDomain.KeyCheck, error) {
	data, err := r.readFile(keyCheckFile)
	if err != nil {
		return nil, err
	}

	var check keysDomain.KeyCheck
	if err := json.Unmarshal(data, &check); err != nil {
		return nil, fmt.Errorf("failed to decode key check: %w", err)
	}
	return &check, nil
}

// SaveKeyCheck persists the key check probe.
func (r *FileStateRepository) SaveKeyCheck(ctx context.Context, check *keysDomain.KeyCheck) error {
	data, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("failed to encode key check: %w", err)
	}
	return r.writeFile(keyCheckFile, data)
}

// LoadDeviceID returns the installation fingerprint.
func (r *FileStateRepository) LoadDeviceID(ctx context.Context) (string, error) {
	data, err := r.readFile(deviceIDFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveDeviceID persists the installation fingerprint.
func (r *FileStateRepository) SaveDeviceID(ctx context.Context, deviceID string) error {
	return r.writeFile(deviceIDFile, []byte(deviceID))
}

// LoadEscrowBlob returns the KMS-wrapped key copy.
func (r *FileStateRepository) LoadEscrowBlob(ctx context.Context) ([]byte, error) {
	return r.readFile(escrowFile)
}

// SaveEscrowBlob persists the KMS-wrapped key copy.
func (r *FileStateRepository) SaveEscrowBlob(ctx context.Context, blob []byte) error {
	return r.writeFile(escrowFile, blob)
}

func (r *FileStateRepository) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (r *FileStateRepository) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(r.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set mode on %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(r.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}
