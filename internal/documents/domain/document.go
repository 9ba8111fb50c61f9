// Package domain defines the core domain models for the encrypted document
// store. Documents hold clinical record payloads as JSON objects; at rest only
// the AEAD ciphertext and its nonce are persisted, with the document id bound
// as associated data.
package domain

import (
	"encoding/json"
	"time"

	apperrors "github.com/allisson/caresync/internal/errors"
)

// Document represents one clinical record.
type Document struct {
	// ID is the logical identifier shared by all replicas of this record.
	ID string
	// Type classifies the record (e.g., "patient", "session", "treatment_plan").
	Type string
	// Revision is the monotonically increasing local revision marker. It
	// increments on every local write and is the basis for conflict detection
	// during replication.
	Revision uint64
	// DeviceID is the fingerprint of the installation that produced this revision.
	DeviceID string
	// UpdatedAt is the UTC timestamp of this revision.
	UpdatedAt time.Time
	// Ciphertext contains the encrypted payload.
	Ciphertext []byte
	// Nonce is the unique value used during AEAD encryption.
	Nonce []byte
	// Payload holds the decrypted record in memory only; never persisted.
	Payload map[string]any `json:"-"`
	// CreatedAt is the UTC timestamp when this record first appeared locally.
	CreatedAt time.Time
}

// EncodePayload serializes the payload for encryption.
func (d *Document) EncodePayload() ([]byte, error) {
	data, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "failed to encode payload: "+err.Error())
	}
	return data, nil
}

// DecodePayload deserializes a decrypted payload into the document.
func (d *Document) DecodePayload(data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.Wrap(ErrCorruptedRecord, err.Error())
	}
	d.Payload = payload
	return nil
}

// Meta returns a copy of the document without ciphertext or payload. Used when
// a record fails authentication but its identity still needs to be reported.
func (d *Document) Meta() *Document {
	return &Document{
		ID:        d.ID,
		Type:      d.Type,
		Revision:  d.Revision,
		DeviceID:  d.DeviceID,
		UpdatedAt: d.UpdatedAt,
		CreatedAt: d.CreatedAt,
	}
}

// Change is one entry in the append-only change feed. Every committed write
// appends a change row in the same transaction; sync checkpoints are sequence
// positions in this feed.
type Change struct {
	// Seq is the strictly increasing feed position.
	Seq uint64
	// DocumentID identifies the document that changed.
	DocumentID string
	// RecordedAt is the UTC timestamp when the change was committed.
	RecordedAt time.Time
}
