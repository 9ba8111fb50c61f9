// Package http provides the hub-side handlers for the sync API: the change
// feed and revision-guarded document push.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	apperrors "github.com/allisson/caresync/internal/errors"
	"github.com/allisson/caresync/internal/httputil"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
	"github.com/allisson/caresync/internal/replication/http/dto"
	"github.com/allisson/caresync/internal/replication/service"
	replicationUseCase "github.com/allisson/caresync/internal/replication/usecase"
	customValidation "github.com/allisson/caresync/internal/validation"
)

const maxChangesPageSize = 500

// SyncHandler handles HTTP requests from peers replicating with this device.
type SyncHandler struct {
	store  replicationUseCase.DocumentStore
	merger replicationUseCase.DocumentMerger
	logger *slog.Logger
}

// NewSyncHandler creates a new sync handler with required dependencies.
func NewSyncHandler(
	store replicationUseCase.DocumentStore,
	merger replicationUseCase.DocumentMerger,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		store:  store,
		merger: merger,
		logger: logger,
	}
}

// ChangesHandler serves a page of the local change feed.
// GET /v1/sync/changes?since=N&limit=N
// Returns 200 OK with the entries after the given sequence position.
func (h *SyncHandler) ChangesHandler(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid since parameter: must be a non-negative integer"),
			h.logger,
		)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > maxChangesPageSize {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid limit parameter: must be between 1 and %d", maxChangesPageSize),
			h.logger,
		)
		return
	}

	changes, err := h.store.ChangesSince(c.Request.Context(), since, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapChangesToResponse(changes))
}

// GetDocumentHandler serves one decrypted document to a replicating peer.
// GET /v1/sync/documents/:id
// Returns 200 OK with the payload in the clear; the peer re-encrypts under
// its own key.
func (h *SyncHandler) GetDocumentHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("document id cannot be empty"), h.logger)
		return
	}

	doc, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDocumentToResponse(doc))
}

// PushDocumentHandler accepts a document offered by a peer.
// POST /v1/sync/documents
// Returns 200 OK when the document is adopted or already known. When the
// local copy diverged and the incoming version does not subsume it, returns
// 409 Conflict with the current local document so the peer can merge and
// push again.
func (h *SyncHandler) PushDocumentHandler(c *gin.Context) {
	var req dto.PushDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	incoming := req.ToRemoteDocument()

	local, err := h.store.Get(c.Request.Context(), incoming.ID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}

		// Unknown document, adopt it wholesale.
		if err := h.store.ApplyRemote(c.Request.Context(), remoteToDocument(incoming)); err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapRemoteDocumentToResponse(incoming))
		return
	}

	if service.EqualPayloads(local.Payload, incoming.Payload) {
		// Same content; adopt the higher revision marker so replicas converge.
		if incoming.Revision > local.Revision {
			if err := h.store.ApplyRemote(c.Request.Context(), remoteToDocument(incoming)); err != nil {
				httputil.HandleErrorGin(c, err, h.logger)
				return
			}
		}
		c.JSON(http.StatusOK, dto.MapRemoteDocumentToResponse(incoming))
		return
	}

	merged := h.merger.Merge(
		&service.MergeInput{
			Payload:   local.Payload,
			Revision:  local.Revision,
			DeviceID:  local.DeviceID,
			UpdatedAt: local.UpdatedAt,
		},
		&service.MergeInput{
			Payload:   incoming.Payload,
			Revision:  incoming.Revision,
			DeviceID:  incoming.DeviceID,
			UpdatedAt: incoming.UpdatedAt,
		},
	)
	if service.EqualPayloads(merged.Payload, incoming.Payload) {
		// The incoming version already subsumes the local one.
		if err := h.store.ApplyRemote(c.Request.Context(), remoteToDocument(incoming)); err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapRemoteDocumentToResponse(incoming))
		return
	}

	// Diverged: answer with the current local document so the pusher merges.
	c.JSON(http.StatusConflict, dto.MapDocumentToResponse(local))
}

func remoteToDocument(remote *replicationDomain.RemoteDocument) *documentsDomain.Document {
	return &documentsDomain.Document{
		ID:        remote.ID,
		Type:      remote.Type,
		Revision:  remote.Revision,
		DeviceID:  remote.DeviceID,
		UpdatedAt: remote.UpdatedAt,
		Payload:   remote.Payload,
	}
}
