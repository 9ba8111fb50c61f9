// Package usecase implements the replication engine: checkpointed pull/push
// passes against peers with field-level conflict resolution.
package usecase

import (
	"context"
	"time"

	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
	"github.com/allisson/caresync/internal/replication/service"
)

// RemoteClient exchanges documents with one peer.
type RemoteClient interface {
	// PeerID identifies the peer for checkpoints and logging.
	PeerID() string

	// Changes retrieves the peer's change feed after the given position.
	Changes(ctx context.Context, since uint64, limit int) ([]*replicationDomain.RemoteChange, error)

	// Fetch retrieves one document from the peer.
	Fetch(ctx context.Context, id string) (*replicationDomain.RemoteDocument, error)

	// Push offers a document to the peer. A non-nil document return means the
	// peer holds a diverged version: the caller merges and pushes again.
	Push(ctx context.Context, doc *replicationDomain.RemoteDocument) (*replicationDomain.RemoteDocument, error)
}

// CheckpointRepository persists per-peer sync progress.
type CheckpointRepository interface {
	Get(ctx context.Context, peerID string) (*replicationDomain.Checkpoint, error)
	Save(ctx context.Context, cp *replicationDomain.Checkpoint) error
}

// DocumentStore is the slice of the encrypted document store the engine
// needs: decrypted reads, remote/merged writes, and the local change feed.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*documentsDomain.Document, error)
	ApplyRemote(ctx context.Context, doc *documentsDomain.Document) error
	ApplyMerged(ctx context.Context, doc *documentsDomain.Document) error
	ChangesSince(ctx context.Context, seq uint64, limit int) ([]*documentsDomain.Change, error)
	LatestChangeSeq(ctx context.Context) (uint64, error)
}

// DocumentMerger resolves divergent versions of a document.
type DocumentMerger interface {
	Merge(a, b *service.MergeInput) *service.MergeResult
}

// SyncEngine defines the replication engine operations.
type SyncEngine interface {
	// SyncAll runs one pull/push pass against every configured peer. The
	// returned report always reflects the progress made; the error is
	// ErrSyncIncomplete when any peer did not finish.
	SyncAll(ctx context.Context) (*replicationDomain.SyncReport, error)

	// Start runs sync passes on a fixed interval until the context is done.
	Start(ctx context.Context, interval time.Duration) error
}
