// Package usecase implements the encrypted document store: business logic
// coordinating the session key manager, AEAD ciphers, and document persistence.
package usecase

import (
	"context"
	"iter"
	"time"

	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// SessionKeys supplies the current session key. Implemented by the session key
// manager; every data operation goes through it so expiry and degraded
// recovery are enforced on each call.
type SessionKeys interface {
	EnsureKey(ctx context.Context) (*keysDomain.EncryptionKey, error)
}

// DocumentRepository defines persistence for encrypted documents and the
// change feed.
type DocumentRepository interface {
	Get(ctx context.Context, id string) (*documentsDomain.Document, error)
	Insert(ctx context.Context, doc *documentsDomain.Document) error
	Update(ctx context.Context, doc *documentsDomain.Document, expectedRevision uint64) error
	ListByType(ctx context.Context, docType string, offset, limit int) ([]*documentsDomain.Document, error)
	AppendChange(ctx context.Context, documentID string, recordedAt time.Time) error
	ChangesSince(ctx context.Context, seq uint64, limit int) ([]*documentsDomain.Change, error)
	LatestChangeSeq(ctx context.Context) (uint64, error)
}

// DocumentStore defines the encrypted document store operations.
type DocumentStore interface {
	// Put writes a document, encrypting its payload and bumping the revision.
	Put(ctx context.Context, doc *documentsDomain.Document) (*documentsDomain.Document, error)

	// Get retrieves and decrypts a document by id.
	Get(ctx context.Context, id string) (*documentsDomain.Document, error)

	// ScanByType iterates decrypted documents of a type. A record that fails
	// authentication is yielded with ErrCorruptedRecord and iteration
	// continues past it.
	ScanByType(ctx context.Context, docType string) iter.Seq2[*documentsDomain.Document, error]

	// ApplyRemote adopts a remote document wholesale, re-encrypting its
	// payload under the local key while preserving the remote revision marker.
	ApplyRemote(ctx context.Context, doc *documentsDomain.Document) error

	// ApplyMerged writes a merge result produced by the conflict engine.
	ApplyMerged(ctx context.Context, doc *documentsDomain.Document) error

	// ChangesSince exposes the change feed for replication.
	ChangesSince(ctx context.Context, seq uint64, limit int) ([]*documentsDomain.Change, error)

	// LatestChangeSeq returns the current tail of the change feed.
	LatestChangeSeq(ctx context.Context) (uint64, error)
}
