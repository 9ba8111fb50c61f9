// Package audit provides an append-only sink for security and clinical
// lifecycle events. The sink is a boundary: callers append events and never
// read them back, so implementations can forward to a log pipeline, a SIEM,
// or an in-memory buffer in tests.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	// EventKeyDerived records a successful key derivation from an access code.
	EventKeyDerived EventType = "key_derived"
	// EventKeyGenerated records generation of a fresh random key.
	EventKeyGenerated EventType = "key_generated"
	// EventKeyRestored records a successful restore from the wrapped backup.
	EventKeyRestored EventType = "key_restored"
	// EventKeyExpired records a key aging out of the session.
	EventKeyExpired EventType = "key_expired"
	// EventSessionLocked records an explicit lock.
	EventSessionLocked EventType = "session_locked"
	// EventDegradedEntered records the session falling back to degraded mode.
	EventDegradedEntered EventType = "degraded_entered"
	// EventDegradedExited records recovery from degraded mode.
	EventDegradedExited EventType = "degraded_exited"
	// EventUnlockFailed records a failed unlock attempt (wrong access code).
	EventUnlockFailed EventType = "unlock_failed"
	// EventDecryptFailed records a record that failed authentication on read.
	EventDecryptFailed EventType = "decrypt_failed"
	// EventConflictResolved records a deterministic merge of divergent replicas.
	EventConflictResolved EventType = "conflict_resolved"
	// EventSyncCompleted records a sync pass that processed every pending change.
	EventSyncCompleted EventType = "sync_completed"
	// EventSyncIncomplete records a sync pass aborted before completion.
	EventSyncIncomplete EventType = "sync_incomplete"
)

// Event is a single append-only audit entry.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       EventType         `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	DeviceID   string            `json:"device_id,omitempty"`
	DocumentID string            `json:"document_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// NewEvent creates an event with a UUIDv7 id and the current timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:         uuid.Must(uuid.NewV7()),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Sink receives audit events. Append must not mutate the event and should be
// safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
