package domain

import (
	"github.com/allisson/caresync/internal/errors"
)

var (
	// ErrRevisionConflict indicates a write raced another writer: the expected
	// revision no longer matches the stored one. Callers re-read and retry.
	//
	// HTTP Status: 409 Conflict
	ErrRevisionConflict = errors.Wrap(errors.ErrConflict, "document revision conflict")

	// ErrCorruptedRecord indicates a stored record failed AEAD authentication
	// or payload decoding. The record is reported and skipped, never silently
	// dropped.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrCorruptedRecord = errors.Wrap(errors.ErrInvalidInput, "record failed authentication")
)
