package usecase

import (
	"context"
	"iter"
	"time"

	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	"github.com/allisson/caresync/internal/metrics"
)

// documentStoreWithMetrics decorates DocumentStore with metrics instrumentation.
type documentStoreWithMetrics struct {
	next    DocumentStore
	metrics metrics.BusinessMetrics
}

// NewDocumentStoreWithMetrics wraps a DocumentStore with metrics recording.
func NewDocumentStoreWithMetrics(store DocumentStore, m metrics.BusinessMetrics) DocumentStore {
	return &documentStoreWithMetrics{
		next:    store,
		metrics: m,
	}
}

// Put records metrics for document write operations.
func (s *documentStoreWithMetrics) Put(
	ctx context.Context,
	doc *documentsDomain.Document,
) (*documentsDomain.Document, error) {
	start := time.Now()
	result, err := s.next.Put(ctx, doc)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "documents", "document_put", status)
	s.metrics.RecordDuration(ctx, "documents", "document_put", time.Since(start), status)

	return result, err
}

// Get records metrics for document read operations.
func (s *documentStoreWithMetrics) Get(
	ctx context.Context,
	id string,
) (*documentsDomain.Document, error) {
	start := time.Now()
	result, err := s.next.Get(ctx, id)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "documents", "document_get", status)
	s.metrics.RecordDuration(ctx, "documents", "document_get", time.Since(start), status)

	return result, err
}

// ScanByType records one operation metric per scan.
func (s *documentStoreWithMetrics) ScanByType(
	ctx context.Context,
	docType string,
) iter.Seq2[*documentsDomain.Document, error] {
	s.metrics.RecordOperation(ctx, "documents", "document_scan", "success")
	return s.next.ScanByType(ctx, docType)
}

// ApplyRemote records metrics for remote document adoption.
func (s *documentStoreWithMetrics) ApplyRemote(
	ctx context.Context,
	doc *documentsDomain.Document,
) error {
	start := time.Now()
	err := s.next.ApplyRemote(ctx, doc)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "documents", "document_apply_remote", status)
	s.metrics.RecordDuration(ctx, "documents", "document_apply_remote", time.Since(start), status)

	return err
}

// ApplyMerged records metrics for merge result writes.
func (s *documentStoreWithMetrics) ApplyMerged(
	ctx context.Context,
	doc *documentsDomain.Document,
) error {
	start := time.Now()
	err := s.next.ApplyMerged(ctx, doc)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "documents", "document_apply_merged", status)
	s.metrics.RecordDuration(ctx, "documents", "document_apply_merged", time.Since(start), status)

	return err
}

// ChangesSince passes through without instrumentation.
func (s *documentStoreWithMetrics) ChangesSince(
	ctx context.Context,
	seq uint64,
	limit int,
) ([]*documentsDomain.Change, error) {
	return s.next.ChangesSince(ctx, seq, limit)
}

// LatestChangeSeq passes through without instrumentation.
func (s *documentStoreWithMetrics) LatestChangeSeq(ctx context.Context) (uint64, error) {
	return s.next.LatestChangeSeq(ctx)
}
