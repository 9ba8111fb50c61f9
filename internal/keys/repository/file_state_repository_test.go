package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

func TestFileStateRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileStateRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("missing values return not found", func(t *testing.T) {
		_, err := repo.LoadSalt(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		_, err = repo.LoadDeviceSecret(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		_, err = repo.LoadBackup(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		_, err = repo.LoadKeyCheck(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		_, err = repo.LoadDeviceID(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		_, err = repo.LoadEscrowBlob(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("salt round trip", func(t *testing.T) {
		salt := []byte("0123456789abcdef0123456789abcdef")
		require.NoError(t, repo.SaveSalt(ctx, salt))

		loaded, err := repo.LoadSalt(ctx)
		require.NoError(t, err)
		assert.Equal(t, salt, loaded)
	})

	t.Run("backup round trip", func(t *testing.T) {
		backup := &keysDomain.WrappedBackup{
			Ciphertext: []byte("ciphertext"),
			Nonce:      []byte("123456789012"),
			Algorithm:  keysDomain.AESGCM,
			Source:     keysDomain.SourceDerived,
			CreatedAt:  time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, repo.SaveBackup(ctx, backup))

		loaded, err := repo.LoadBackup(ctx)
		require.NoError(t, err)
		assert.Equal(t, backup, loaded)
	})

	t.Run("device id round trip", func(t *testing.T) {
		require.NoError(t, repo.SaveDeviceID(ctx, "device-a"))

		loaded, err := repo.LoadDeviceID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "device-a", loaded)
	})

	t.Run("files are private to the owner", func(t *testing.T) {
		info, err := os.Stat(filepath.Join(dir, "salt"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("overwrite replaces the value", func(t *testing.T) {
		require.NoError(t, repo.SaveDeviceID(ctx, "device-b"))

		loaded, err := repo.LoadDeviceID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "device-b", loaded)
	})
}
