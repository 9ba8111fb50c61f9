package usecase

import (
	"context"
	"time"

	"github.com/allisson/caresync/internal/metrics"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
)

// syncEngineWithMetrics decorates SyncEngine with metrics instrumentation.
type syncEngineWithMetrics struct {
	next    SyncEngine
	metrics metrics.BusinessMetrics
}

// NewSyncEngineWithMetrics wraps a SyncEngine with metrics recording.
func NewSyncEngineWithMetrics(engine SyncEngine, m metrics.BusinessMetrics) SyncEngine {
	return &syncEngineWithMetrics{
		next:    engine,
		metrics: m,
	}
}

// SyncAll records metrics for full sync passes.
func (s *syncEngineWithMetrics) SyncAll(
	ctx context.Context,
) (*replicationDomain.SyncReport, error) {
	start := time.Now()
	report, err := s.next.SyncAll(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "replication", "sync_pass", status)
	s.metrics.RecordDuration(ctx, "replication", "sync_pass", time.Since(start), status)

	return report, err
}

// Start passes through without instrumentation; each pass records its own metrics.
func (s *syncEngineWithMetrics) Start(ctx context.Context, interval time.Duration) error {
	return s.next.Start(ctx, interval)
}
