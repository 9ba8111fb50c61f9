package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/caresync/internal/audit"
	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	apperrors "github.com/allisson/caresync/internal/errors"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
	"github.com/allisson/caresync/internal/replication/service"
)

// syncEngine replicates documents with peers. Each pass pulls the peer's
// change feed, merges divergent versions field by field, then pushes the
// local feed. Checkpoints advance after every applied item, so a pass cut
// short by a dead link resumes from the last applied change instead of
// starting over.
type syncEngine struct {
	checkpoints CheckpointRepository
	store       DocumentStore
	merger      DocumentMerger
	clients     []RemoteClient
	sink        audit.Sink
	logger      *slog.Logger
	deviceID    string
	pageSize    int
	now         func() time.Time
}

// NewSyncEngine creates a replication engine over the given peers.
func NewSyncEngine(
	checkpoints CheckpointRepository,
	store DocumentStore,
	merger DocumentMerger,
	clients []RemoteClient,
	sink audit.Sink,
	logger *slog.Logger,
	deviceID string,
	pageSize int,
) SyncEngine {
	return &syncEngine{
		checkpoints: checkpoints,
		store:       store,
		merger:      merger,
		clients:     clients,
		sink:        sink,
		logger:      logger,
		deviceID:    deviceID,
		pageSize:    pageSize,
		now:         time.Now,
	}
}

// Start runs sync passes on a fixed interval until the context is done.
func (e *syncEngine) Start(ctx context.Context, interval time.Duration) error {
	e.logger.Info("starting sync loop",
		slog.Duration("interval", interval),
		slog.Int("peers", len(e.clients)),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("stopping sync loop")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.SyncAll(ctx); err != nil {
				e.logger.Error("sync pass failed", slog.Any("error", err))
			}
		}
	}
}

// SyncAll runs one pull/push pass against every configured peer. Peers are
// synced concurrently and independently: one unreachable peer does not stop
// progress with the others.
func (e *syncEngine) SyncAll(ctx context.Context) (*replicationDomain.SyncReport, error) {
	report := &replicationDomain.SyncReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, client := range e.clients {
		g.Go(func() error {
			peerReport, err := e.syncPeer(gctx, client)

			mu.Lock()
			defer mu.Unlock()
			report.Pulled += peerReport.Pulled
			report.Pushed += peerReport.Pushed
			report.Merged += peerReport.Merged
			report.Conflicts += peerReport.Conflicts
			if err != nil {
				e.logger.Warn("peer sync failed",
					slog.String("peer", client.PeerID()),
					slog.Any("error", err))
				report.PeersFailed = append(report.PeersFailed, client.PeerID())
				return nil
			}
			report.PeersSynced = append(report.PeersSynced, client.PeerID())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if !report.Complete() {
		event := audit.NewEvent(audit.EventSyncIncomplete)
		event.DeviceID = e.deviceID
		event.Reason = "one or more peers did not finish"
		event.Details = map[string]string{
			"peers_failed": strings.Join(report.PeersFailed, ","),
		}
		e.appendAudit(ctx, event)
		return report, replicationDomain.ErrSyncIncomplete
	}

	event := audit.NewEvent(audit.EventSyncCompleted)
	event.DeviceID = e.deviceID
	event.Details = map[string]string{
		"pulled":    strconv.Itoa(report.Pulled),
		"pushed":    strconv.Itoa(report.Pushed),
		"merged":    strconv.Itoa(report.Merged),
		"conflicts": strconv.Itoa(report.Conflicts),
	}
	e.appendAudit(ctx, event)

	return report, nil
}

// syncPeer runs the pull phase then the push phase against one peer.
// Whatever progress was made is returned even when the pass fails partway.
func (e *syncEngine) syncPeer(
	ctx context.Context,
	client RemoteClient,
) (*replicationDomain.SyncReport, error) {
	report := &replicationDomain.SyncReport{}

	cp, err := e.checkpoints.Get(ctx, client.PeerID())
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return report, err
		}
		cp = &replicationDomain.Checkpoint{PeerID: client.PeerID()}
	}

	if err := e.pull(ctx, client, cp, report); err != nil {
		return report, err
	}
	if err := e.push(ctx, client, cp, report); err != nil {
		return report, err
	}

	return report, nil
}

// pull applies the peer's change feed from the pulled checkpoint forward,
// advancing the checkpoint after each applied document.
func (e *syncEngine) pull(
	ctx context.Context,
	client RemoteClient,
	cp *replicationDomain.Checkpoint,
	report *replicationDomain.SyncReport,
) error {
	for {
		changes, err := client.Changes(ctx, cp.PulledSeq, e.pageSize)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		for _, change := range changes {
			if err := e.pullOne(ctx, client, change.DocumentID, report); err != nil {
				return err
			}

			cp.PulledSeq = change.Seq
			cp.UpdatedAt = e.now()
			if err := e.checkpoints.Save(ctx, cp); err != nil {
				return err
			}
		}

		if len(changes) < e.pageSize {
			return nil
		}
	}
}

// pullOne fetches one remote document and reconciles it with the local copy.
func (e *syncEngine) pullOne(
	ctx context.Context,
	client RemoteClient,
	documentID string,
	report *replicationDomain.SyncReport,
) error {
	remote, err := client.Fetch(ctx, documentID)
	if err != nil {
		return err
	}

	local, err := e.store.Get(ctx, documentID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		// Unknown document, adopt it wholesale.
		if err := e.store.ApplyRemote(ctx, fromRemote(remote)); err != nil {
			return err
		}
		report.Pulled++
		return nil
	}

	if local.Revision == remote.Revision && service.EqualPayloads(local.Payload, remote.Payload) {
		return nil
	}

	if service.EqualPayloads(local.Payload, remote.Payload) {
		// Same content, diverged markers. Adopt the higher revision so both
		// replicas converge without a merge.
		if remote.Revision > local.Revision {
			if err := e.store.ApplyRemote(ctx, fromRemote(remote)); err != nil {
				return err
			}
			report.Pulled++
		}
		return nil
	}

	merged, err := e.applyMerge(ctx, local, remote)
	if err != nil {
		return err
	}
	report.Pulled++
	report.Merged++
	if merged {
		report.Conflicts++
	}
	return nil
}

// push delivers the local change feed from the pushed checkpoint forward,
// advancing the checkpoint after each delivered document.
func (e *syncEngine) push(
	ctx context.Context,
	client RemoteClient,
	cp *replicationDomain.Checkpoint,
	report *replicationDomain.SyncReport,
) error {
	for {
		changes, err := e.store.ChangesSince(ctx, cp.PushedSeq, e.pageSize)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		for _, change := range changes {
			if err := e.pushOne(ctx, client, change.DocumentID, report); err != nil {
				return err
			}

			cp.PushedSeq = change.Seq
			cp.UpdatedAt = e.now()
			if err := e.checkpoints.Save(ctx, cp); err != nil {
				return err
			}
		}

		if len(changes) < e.pageSize {
			return nil
		}
	}
}

// pushOne offers one local document to the peer. When the peer answers with
// a diverged version, both sides are merged, the merge is written locally,
// and the merged document is pushed.
func (e *syncEngine) pushOne(
	ctx context.Context,
	client RemoteClient,
	documentID string,
	report *replicationDomain.SyncReport,
) error {
	local, err := e.store.Get(ctx, documentID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// Feed entry for a document that no longer resolves; skip it.
			return nil
		}
		return err
	}

	current, err := client.Push(ctx, toRemote(local))
	if err != nil {
		return err
	}
	if current == nil {
		report.Pushed++
		return nil
	}

	if service.EqualPayloads(local.Payload, current.Payload) && local.Revision == current.Revision {
		report.Pushed++
		return nil
	}

	conflicted, err := e.applyMerge(ctx, local, current)
	if err != nil {
		return err
	}
	report.Merged++
	if conflicted {
		report.Conflicts++
	}

	mergedLocal, err := e.store.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if _, err := client.Push(ctx, toRemote(mergedLocal)); err != nil {
		return err
	}
	report.Pushed++
	return nil
}

// applyMerge merges a local and a remote version, writes the result locally,
// and records an audit event when fields actually disagreed. Returns whether
// the merge resolved a field conflict.
func (e *syncEngine) applyMerge(
	ctx context.Context,
	local *documentsDomain.Document,
	remote *replicationDomain.RemoteDocument,
) (bool, error) {
	result := e.merger.Merge(
		&service.MergeInput{
			Payload:   local.Payload,
			Revision:  local.Revision,
			DeviceID:  local.DeviceID,
			UpdatedAt: local.UpdatedAt,
		},
		&service.MergeInput{
			Payload:   remote.Payload,
			Revision:  remote.Revision,
			DeviceID:  remote.DeviceID,
			UpdatedAt: remote.UpdatedAt,
		},
	)

	merged := &documentsDomain.Document{
		ID:        local.ID,
		Type:      local.Type,
		Revision:  result.Revision,
		DeviceID:  result.DeviceID,
		UpdatedAt: result.UpdatedAt,
		Payload:   result.Payload,
	}
	if err := e.store.ApplyMerged(ctx, merged); err != nil {
		return false, err
	}

	if len(result.ConflictFields) == 0 {
		return false, nil
	}

	event := audit.NewEvent(audit.EventConflictResolved)
	event.DeviceID = e.deviceID
	event.DocumentID = local.ID
	event.Details = map[string]string{
		"fields":          strings.Join(result.ConflictFields, ","),
		"local_revision":  strconv.FormatUint(local.Revision, 10),
		"remote_revision": strconv.FormatUint(remote.Revision, 10),
	}
	e.appendAudit(ctx, event)

	return true, nil
}

// appendAudit records an event, logging instead of failing when the sink is
// unavailable. Replication progress never depends on the audit trail.
func (e *syncEngine) appendAudit(ctx context.Context, event audit.Event) {
	if err := e.sink.Append(ctx, event); err != nil {
		e.logger.Error("failed to append audit event",
			slog.String("event_type", string(event.Type)),
			slog.Any("error", err))
	}
}

func fromRemote(remote *replicationDomain.RemoteDocument) *documentsDomain.Document {
	return &documentsDomain.Document{
		ID:        remote.ID,
		Type:      remote.Type,
		Revision:  remote.Revision,
		DeviceID:  remote.DeviceID,
		UpdatedAt: remote.UpdatedAt,
		Payload:   remote.Payload,
	}
}

func toRemote(doc *documentsDomain.Document) *replicationDomain.RemoteDocument {
	return &replicationDomain.RemoteDocument{
		ID:        doc.ID,
		Type:      doc.Type,
		Revision:  doc.Revision,
		DeviceID:  doc.DeviceID,
		UpdatedAt: doc.UpdatedAt,
		Payload:   doc.Payload,
	}
}
