// Package domain defines the replication entities: sync checkpoints, the wire
// representation of documents exchanged between peers, and sync reports.
package domain

import (
	"time"
)

// Checkpoint records how far replication with a peer has progressed. PulledSeq
// is the position in the peer's change feed already applied locally; PushedSeq
// is the position in the local change feed already delivered to the peer.
// Checkpoints advance per item, so an interrupted pass resumes where it
// stopped instead of re-transferring the whole feed.
type Checkpoint struct {
	PeerID    string    `json:"peer_id"`
	PulledSeq uint64    `json:"pulled_seq"`
	PushedSeq uint64    `json:"pushed_seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemoteChange is a change feed entry as exposed to peers.
type RemoteChange struct {
	Seq        uint64    `json:"seq"`
	DocumentID string    `json:"document_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RemoteDocument is the wire representation of a document. Payloads travel in
// the clear between peers (transport security is the deployment's concern) and
// each replica re-encrypts under its own key on receipt, since keys are never
// shared between devices.
type RemoteDocument struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Revision  uint64         `json:"revision"`
	DeviceID  string         `json:"device_id"`
	UpdatedAt time.Time      `json:"updated_at"`
	Payload   map[string]any `json:"payload"`
}

// SyncReport summarizes a sync pass across all configured peers.
type SyncReport struct {
	Pulled      int      `json:"pulled"`
	Pushed      int      `json:"pushed"`
	Merged      int      `json:"merged"`
	Conflicts   int      `json:"conflicts"`
	PeersSynced []string `json:"peers_synced"`
	PeersFailed []string `json:"peers_failed"`
}

// Complete reports whether every peer finished its pass.
func (r *SyncReport) Complete() bool {
	return len(r.PeersFailed) == 0
}
