// Package dto provides data transfer objects for the sync API.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
)

// PushDocumentRequest is a document offered by a peer. Payloads arrive in the
// clear; the store re-encrypts under the local key before anything touches
// disk.
type PushDocumentRequest struct {
	ID        string         `json:"id" binding:"required"`
	Type      string         `json:"type" binding:"required"`
	Revision  uint64         `json:"revision" binding:"required"`
	DeviceID  string         `json:"device_id" binding:"required"`
	UpdatedAt time.Time      `json:"updated_at"`
	Payload   map[string]any `json:"payload" binding:"required"`
}

// Validate checks if the push document request is valid.
func (r *PushDocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Type, validation.Required),
		validation.Field(&r.Revision, validation.Required, validation.Min(uint64(1))),
		validation.Field(&r.DeviceID, validation.Required),
		validation.Field(&r.Payload, validation.Required),
	)
}

// ToRemoteDocument converts the request to its domain representation.
func (r *PushDocumentRequest) ToRemoteDocument() *replicationDomain.RemoteDocument {
	return &replicationDomain.RemoteDocument{
		ID:        r.ID,
		Type:      r.Type,
		Revision:  r.Revision,
		DeviceID:  r.DeviceID,
		UpdatedAt: r.UpdatedAt,
		Payload:   r.Payload,
	}
}
