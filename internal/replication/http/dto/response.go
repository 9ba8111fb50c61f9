package dto

import (
	"time"

	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
)

// ChangeResponse is a change feed entry in API responses.
type ChangeResponse struct {
	Seq        uint64    `json:"seq"`
	DocumentID string    `json:"document_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ChangesResponse is a page of the change feed.
type ChangesResponse struct {
	Changes []ChangeResponse `json:"changes"`
}

// MapChangesToResponse converts change feed entries to an API response.
func MapChangesToResponse(changes []*documentsDomain.Change) ChangesResponse {
	out := ChangesResponse{Changes: make([]ChangeResponse, 0, len(changes))}
	for _, change := range changes {
		out.Changes = append(out.Changes, ChangeResponse{
			Seq:        change.Seq,
			DocumentID: change.DocumentID,
			RecordedAt: change.RecordedAt,
		})
	}
	return out
}

// DocumentResponse is a document in API responses, payload in the clear.
type DocumentResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Revision  uint64         `json:"revision"`
	DeviceID  string         `json:"device_id"`
	UpdatedAt time.Time      `json:"updated_at"`
	Payload   map[string]any `json:"payload"`
}

// MapDocumentToResponse converts a decrypted document to an API response.
func MapDocumentToResponse(doc *documentsDomain.Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Type:      doc.Type,
		Revision:  doc.Revision,
		DeviceID:  doc.DeviceID,
		UpdatedAt: doc.UpdatedAt,
		Payload:   doc.Payload,
	}
}

// MapRemoteDocumentToResponse converts a wire document to an API response.
func MapRemoteDocumentToResponse(doc *replicationDomain.RemoteDocument) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Type:      doc.Type,
		Revision:  doc.Revision,
		DeviceID:  doc.DeviceID,
		UpdatedAt: doc.UpdatedAt,
		Payload:   doc.Payload,
	}
}
