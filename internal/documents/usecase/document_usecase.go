package usecase

import (
	"context"
	"hash/fnv"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/caresync/internal/audit"
	"github.com/allisson/caresync/internal/database"
	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
	keysService "github.com/allisson/caresync/internal/keys/service"
)

const (
	// scanPageSize is how many rows ScanByType pulls per repository call.
	scanPageSize = 100

	// putRetries bounds optimistic retries when a write races another process.
	putRetries = 3

	// lockStripes is the size of the per-id mutex pool serializing writers of
	// the same document within this process.
	lockStripes = 64
)

// documentStore implements the DocumentStore interface.
type documentStore struct {
	txManager   database.TxManager
	repo        DocumentRepository
	sessions    SessionKeys
	aeadManager keysService.AEADManager
	algorithm   keysDomain.Algorithm
	deviceID    string
	sink        audit.Sink
	logger      *slog.Logger
	locks       [lockStripes]sync.Mutex
}

// NewDocumentStore creates a document store instance with the provided dependencies.
func NewDocumentStore(
	txManager database.TxManager,
	repo DocumentRepository,
	sessions SessionKeys,
	aeadManager keysService.AEADManager,
	algorithm keysDomain.Algorithm,
	deviceID string,
	sink audit.Sink,
	logger *slog.Logger,
) DocumentStore {
	return &documentStore{
		txManager:   txManager,
		repo:        repo,
		sessions:    sessions,
		aeadManager: aeadManager,
		algorithm:   algorithm,
		deviceID:    deviceID,
		sink:        sink,
		logger:      logger,
	}
}

// Put writes a document, encrypting its payload and bumping the revision.
//
// The revision guard makes the write optimistic: when another process commits
// in between, the repository reports ErrRevisionConflict and the write is
// retried against the fresh revision.
func (s *documentStore) Put(
	ctx context.Context,
	doc *documentsDomain.Document,
) (*documentsDomain.Document, error) {
	if doc.ID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "document id is required")
	}
	if doc.Type == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "document type is required")
	}

	unlock := s.lockID(doc.ID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < putRetries; attempt++ {
		current, err := s.repo.Get(ctx, doc.ID)
		if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}

		var expected uint64
		now := time.Now().UTC()
		write := &documentsDomain.Document{
			ID:        doc.ID,
			Type:      doc.Type,
			Revision:  1,
			DeviceID:  s.deviceID,
			UpdatedAt: now,
			Payload:   doc.Payload,
			CreatedAt: now,
		}
		if current != nil {
			expected = current.Revision
			write.Revision = current.Revision + 1
			write.CreatedAt = current.CreatedAt
		}

		if err := s.encrypt(ctx, write); err != nil {
			return nil, err
		}

		err = s.commit(ctx, write, expected)
		if err == nil {
			return write, nil
		}
		if !apperrors.Is(err, documentsDomain.ErrRevisionConflict) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// Get retrieves and decrypts a document by id.
func (s *documentStore) Get(
	ctx context.Context,
	id string,
) (*documentsDomain.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.decrypt(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ScanByType iterates decrypted documents of a type in id order.
//
// A record that fails authentication is yielded with ErrCorruptedRecord and a
// metadata-only document so the caller can report it; the scan then continues
// with the next record. Repository errors stop the scan.
func (s *documentStore) ScanByType(
	ctx context.Context,
	docType string,
) iter.Seq2[*documentsDomain.Document, error] {
	return func(yield func(*documentsDomain.Document, error) bool) {
		offset := 0
		for {
			page, err := s.repo.ListByType(ctx, docType, offset, scanPageSize)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, doc := range page {
				if err := s.decrypt(ctx, doc); err != nil {
					if !yield(doc.Meta(), err) {
						return
					}
					continue
				}
				if !yield(doc, nil) {
					return
				}
			}

			if len(page) < scanPageSize {
				return
			}
			offset += scanPageSize
		}
	}
}

// ApplyRemote adopts a remote document wholesale, preserving its revision
// marker, origin device, and timestamp while re-encrypting the payload under
// the local key.
func (s *documentStore) ApplyRemote(
	ctx context.Context,
	doc *documentsDomain.Document,
) error {
	return s.apply(ctx, doc)
}

// ApplyMerged writes a merge result produced by the conflict engine. The
// merged document carries its own revision (max of both inputs plus one) and
// merged origin metadata.
func (s *documentStore) ApplyMerged(
	ctx context.Context,
	doc *documentsDomain.Document,
) error {
	return s.apply(ctx, doc)
}

// ChangesSince exposes the change feed for replication.
func (s *documentStore) ChangesSince(
	ctx context.Context,
	seq uint64,
	limit int,
) ([]*documentsDomain.Change, error) {
	return s.repo.ChangesSince(ctx, seq, limit)
}

// LatestChangeSeq returns the current tail of the change feed.
func (s *documentStore) LatestChangeSeq(ctx context.Context) (uint64, error) {
	return s.repo.LatestChangeSeq(ctx)
}

func (s *documentStore) apply(ctx context.Context, doc *documentsDomain.Document) error {
	if doc.ID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "document id is required")
	}

	unlock := s.lockID(doc.ID)
	defer unlock()

	current, err := s.repo.Get(ctx, doc.ID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	var expected uint64
	write := &documentsDomain.Document{
		ID:        doc.ID,
		Type:      doc.Type,
		Revision:  doc.Revision,
		DeviceID:  doc.DeviceID,
		UpdatedAt: doc.UpdatedAt,
		Payload:   doc.Payload,
		CreatedAt: time.Now().UTC(),
	}
	if current != nil {
		expected = current.Revision
		write.CreatedAt = current.CreatedAt
	}

	if err := s.encrypt(ctx, write); err != nil {
		return err
	}

	return s.commit(ctx, write, expected)
}

// commit persists the document and its change feed entry in one transaction.
func (s *documentStore) commit(
	ctx context.Context,
	doc *documentsDomain.Document,
	expectedRevision uint64,
) error {
	return s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		if expectedRevision == 0 {
			err = s.repo.Insert(txCtx, doc)
		} else {
			err = s.repo.Update(txCtx, doc, expectedRevision)
		}
		if err != nil {
			return err
		}

		return s.repo.AppendChange(txCtx, doc.ID, doc.UpdatedAt)
	})
}

func (s *documentStore) encrypt(ctx context.Context, doc *documentsDomain.Document) error {
	key, err := s.sessions.EnsureKey(ctx)
	if err != nil {
		return err
	}

	plaintext, err := doc.EncodePayload()
	if err != nil {
		return err
	}

	cipher, err := s.aeadManager.CreateCipher(key.Bytes, s.algorithm)
	if err != nil {
		return err
	}

	// The document id is bound as AAD, so a ciphertext cannot be replayed
	// under a different id.
	ciphertext, nonce, err := cipher.Encrypt(plaintext, []byte(doc.ID))
	if err != nil {
		return err
	}

	doc.Ciphertext = ciphertext
	doc.Nonce = nonce
	return nil
}

func (s *documentStore) decrypt(ctx context.Context, doc *documentsDomain.Document) error {
	key, err := s.sessions.EnsureKey(ctx)
	if err != nil {
		return err
	}

	cipher, err := s.aeadManager.CreateCipher(key.Bytes, s.algorithm)
	if err != nil {
		return err
	}

	plaintext, err := cipher.Decrypt(doc.Ciphertext, doc.Nonce, []byte(doc.ID))
	if err != nil {
		s.reportCorrupted(ctx, doc)
		return documentsDomain.ErrCorruptedRecord
	}

	return doc.DecodePayload(plaintext)
}

func (s *documentStore) reportCorrupted(ctx context.Context, doc *documentsDomain.Document) {
	event := audit.NewEvent(audit.EventDecryptFailed)
	event.DeviceID = s.deviceID
	event.DocumentID = doc.ID
	event.Reason = "record failed authentication"
	if err := s.sink.Append(ctx, event); err != nil {
		s.logger.Warn("failed to append audit event",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()))
	}
}

func (s *documentStore) lockID(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	lock := &s.locks[h.Sum32()%lockStripes]
	lock.Lock()
	return lock.Unlock
}
