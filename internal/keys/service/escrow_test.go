package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keysDomain "github.com/allisson/caresync/internal/keys/domain"
	keysRepository "github.com/allisson/caresync/internal/keys/repository"
)

// localKeeperURI uses the in-process localsecrets driver, so escrow can be
// exercised without any external KMS.
const localKeeperURI = "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="

func newTestEscrow(t *testing.T) (*EscrowService, *keysRepository.FileStateRepository) {
	t.Helper()
	ctx := context.Background()

	keeper, err := OpenEscrowKeeper(ctx, localKeeperURI)
	require.NoError(t, err)
	t.Cleanup(func() { _ = keeper.Close() })

	repo, err := keysRepository.NewFileStateRepository(t.TempDir())
	require.NoError(t, err)

	return NewEscrowService(keeper, repo), repo
}

func TestEscrowService_EscrowRecover(t *testing.T) {
	escrow, _ := newTestEscrow(t)
	ctx := context.Background()

	key := &keysDomain.EncryptionKey{Bytes: newTestKey(t), Source: keysDomain.SourceDerived}

	require.NoError(t, escrow.Escrow(ctx, key))

	recovered, err := escrow.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, key.Bytes, recovered.Bytes)
	assert.Equal(t, keysDomain.SourceRestored, recovered.Source)
}

func TestEscrowService_RecoverWithoutBlob(t *testing.T) {
	escrow, _ := newTestEscrow(t)

	_, err := escrow.Recover(context.Background())
	assert.ErrorIs(t, err, keysDomain.ErrBackupNotFound)
}

func TestOpenEscrowKeeper_InvalidURI(t *testing.T) {
	_, err := OpenEscrowKeeper(context.Background(), "not-a-keeper://nope")
	assert.Error(t, err)
}
