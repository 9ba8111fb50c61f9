package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/caresync/internal/audit"
	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	apperrors "github.com/allisson/caresync/internal/errors"
	keysDomain "github.com/allisson/caresync/internal/keys/domain"
	keysService "github.com/allisson/caresync/internal/keys/service"
)

// passthroughTxManager runs the function without a real transaction. The
// in-memory repository has no transactional semantics to exercise.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// staticSessionKeys hands out a fixed key, or an error to simulate a locked session.
type staticSessionKeys struct {
	key *keysDomain.EncryptionKey
	err error
}

func (s *staticSessionKeys) EnsureKey(ctx context.Context) (*keysDomain.EncryptionKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.key, nil
}

// memoryDocumentRepository implements DocumentRepository in memory with the
// same revision guard semantics as the SQL repositories.
type memoryDocumentRepository struct {
	mu      sync.Mutex
	docs    map[string]*documentsDomain.Document
	changes []*documentsDomain.Change
}

func newMemoryDocumentRepository() *memoryDocumentRepository {
	return &memoryDocumentRepository{docs: make(map[string]*documentsDomain.Document)}
}

func (r *memoryDocumentRepository) Get(ctx context.Context, id string) (*documentsDomain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (r *memoryDocumentRepository) Insert(ctx context.Context, doc *documentsDomain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return documentsDomain.ErrRevisionConflict
	}
	clone := *doc
	r.docs[doc.ID] = &clone
	return nil
}

func (r *memoryDocumentRepository) Update(
	ctx context.Context,
	doc *documentsDomain.Document,
	expectedRevision uint64,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.docs[doc.ID]
	if !ok || current.Revision != expectedRevision {
		return documentsDomain.ErrRevisionConflict
	}
	clone := *doc
	clone.CreatedAt = current.CreatedAt
	r.docs[doc.ID] = &clone
	return nil
}

func (r *memoryDocumentRepository) ListByType(
	ctx context.Context,
	docType string,
	offset, limit int,
) ([]*documentsDomain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*documentsDomain.Document
	for _, doc := range r.docs {
		if doc.Type == docType {
			clone := *doc
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryDocumentRepository) AppendChange(
	ctx context.Context,
	documentID string,
	recordedAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, &documentsDomain.Change{
		Seq:        uint64(len(r.changes) + 1),
		DocumentID: documentID,
		RecordedAt: recordedAt,
	})
	return nil
}

func (r *memoryDocumentRepository) ChangesSince(
	ctx context.Context,
	seq uint64,
	limit int,
) ([]*documentsDomain.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*documentsDomain.Change
	for _, change := range r.changes {
		if change.Seq > seq {
			out = append(out, change)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memoryDocumentRepository) LatestChangeSeq(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.changes)), nil
}

// tamper flips a ciphertext byte in place, simulating at-rest corruption.
func (r *memoryDocumentRepository) tamper(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id].Ciphertext[0] ^= 0xff
}

type storeFixture struct {
	store DocumentStore
	repo  *memoryDocumentRepository
	keys  *staticSessionKeys
	sink  *audit.MemorySink
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	seq, err := keysService.NewNonceSequence()
	require.NoError(t, err)
	aeadManager := keysService.NewAEADManager(seq)

	keyBytes := make([]byte, keysDomain.KeySize)
	for i := range keyBytes {
		keyBytes[i] = byte(i)
	}
	keys := &staticSessionKeys{key: &keysDomain.EncryptionKey{
		Bytes:     keyBytes,
		Source:    keysDomain.SourceDerived,
		CreatedAt: time.Now().UTC(),
	}}

	repo := newMemoryDocumentRepository()
	sink := audit.NewMemorySink()

	store := NewDocumentStore(
		passthroughTxManager{},
		repo,
		keys,
		aeadManager,
		keysDomain.AESGCM,
		"device-a",
		sink,
		slog.New(slog.DiscardHandler),
	)

	return &storeFixture{store: store, repo: repo, keys: keys, sink: sink}
}

func TestDocumentStore_PutGet(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	written, err := fx.store.Put(ctx, &documentsDomain.Document{
		ID:      "p1",
		Type:    "session",
		Payload: map[string]any{"stage": "assessment"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), written.Revision)
	assert.Equal(t, "device-a", written.DeviceID)

	got, err := fx.store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "session", got.Type)
	assert.Equal(t, map[string]any{"stage": "assessment"}, got.Payload)

	// Stored form is ciphertext, not the payload.
	raw, err := fx.repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.NotContains(t, string(raw.Ciphertext), "assessment")
}

func TestDocumentStore_PutBumpsRevisionAndFeed(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		written, err := fx.store.Put(ctx, &documentsDomain.Document{
			ID:      "p1",
			Type:    "session",
			Payload: map[string]any{"visit": float64(i)},
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), written.Revision)
	}

	changes, err := fx.store.ChangesSince(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	for _, change := range changes {
		assert.Equal(t, "p1", change.DocumentID)
	}
}

func TestDocumentStore_PutValidation(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	_, err := fx.store.Put(ctx, &documentsDomain.Document{Type: "session"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = fx.store.Put(ctx, &documentsDomain.Document{ID: "p1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDocumentStore_LockedSession(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	_, err := fx.store.Put(ctx, &documentsDomain.Document{
		ID:      "p1",
		Type:    "session",
		Payload: map[string]any{"stage": "assessment"},
	})
	require.NoError(t, err)

	fx.keys.err = keysDomain.ErrKeyUnavailable

	_, err = fx.store.Get(ctx, "p1")
	assert.ErrorIs(t, err, keysDomain.ErrKeyUnavailable)

	_, err = fx.store.Put(ctx, &documentsDomain.Document{
		ID:      "p2",
		Type:    "session",
		Payload: map[string]any{},
	})
	assert.ErrorIs(t, err, keysDomain.ErrKeyUnavailable)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	fx := newStoreFixture(t)

	_, err := fx.store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDocumentStore_CorruptedRecord(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	_, err := fx.store.Put(ctx, &documentsDomain.Document{
		ID:      "p1",
		Type:    "session",
		Payload: map[string]any{"stage": "assessment"},
	})
	require.NoError(t, err)

	fx.repo.tamper("p1")

	_, err = fx.store.Get(ctx, "p1")
	assert.ErrorIs(t, err, documentsDomain.ErrCorruptedRecord)
	assert.Len(t, fx.sink.EventsOfType(audit.EventDecryptFailed), 1)
}

func TestDocumentStore_ScanByType(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := fx.store.Put(ctx, &documentsDomain.Document{
			ID:      id,
			Type:    "session",
			Payload: map[string]any{"id": id},
		})
		require.NoError(t, err)
	}
	_, err := fx.store.Put(ctx, &documentsDomain.Document{
		ID:      "other",
		Type:    "patient",
		Payload: map[string]any{},
	})
	require.NoError(t, err)

	// Corrupt the middle record; the scan must surface it and keep going.
	fx.repo.tamper("p2")

	var ok, corrupted []string
	for doc, err := range fx.store.ScanByType(ctx, "session") {
		if err != nil {
			assert.ErrorIs(t, err, documentsDomain.ErrCorruptedRecord)
			corrupted = append(corrupted, doc.ID)
			continue
		}
		ok = append(ok, doc.ID)
	}

	assert.Equal(t, []string{"p1", "p3"}, ok)
	assert.Equal(t, []string{"p2"}, corrupted)
}

func TestDocumentStore_ApplyRemotePreservesMarkers(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	remoteTime := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	err := fx.store.ApplyRemote(ctx, &documentsDomain.Document{
		ID:        "p1",
		Type:      "session",
		Revision:  7,
		DeviceID:  "device-b",
		UpdatedAt: remoteTime,
		Payload:   map[string]any{"stage": "treatment"},
	})
	require.NoError(t, err)

	got, err := fx.store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Revision)
	assert.Equal(t, "device-b", got.DeviceID)
	assert.True(t, got.UpdatedAt.Equal(remoteTime))
	assert.Equal(t, map[string]any{"stage": "treatment"}, got.Payload)
}

func TestDocumentStore_MetricsDecoratorPassthrough(t *testing.T) {
	fx := newStoreFixture(t)
	ctx := context.Background()

	store := NewDocumentStoreWithMetrics(fx.store, newRecordingMetrics())

	_, err := store.Put(ctx, &documentsDomain.Document{
		ID:      "p1",
		Type:    "session",
		Payload: map[string]any{"stage": "assessment"},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Revision)
}

type recordingMetrics struct {
	mu  sync.Mutex
	ops []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{}
}

func (m *recordingMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, domain+"/"+operation+"/"+status)
}

func (m *recordingMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}
