package domain

import (
	apperrors "github.com/allisson/caresync/internal/errors"
)

var (
	// ErrRemoteUnavailable indicates a peer could not be reached or answered
	// with a server error. Maps to HTTP 503 when surfaced.
	ErrRemoteUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "peer unavailable")

	// ErrSyncIncomplete indicates a sync pass stopped before reaching the tail
	// of every feed. Checkpoints retain the progress already made, so the next
	// pass resumes rather than restarts. Maps to HTTP 503 when surfaced.
	ErrSyncIncomplete = apperrors.Wrap(apperrors.ErrUnavailable, "sync incomplete")
)
