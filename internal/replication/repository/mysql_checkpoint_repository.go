package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/caresync/internal/database"
	apperrors "github.com/allisson/caresync/internal/errors"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
)

// MySQLCheckpointRepository implements Checkpoint persistence for MySQL databases.
type MySQLCheckpointRepository struct {
	db *sql.DB
}

// NewMySQLCheckpointRepository creates a new MySQL Checkpoint repository instance.
func NewMySQLCheckpointRepository(db *sql.DB) *MySQLCheckpointRepository {
	return &MySQLCheckpointRepository{db: db}
}

// Get retrieves the checkpoint for a peer.
func (m *MySQLCheckpointRepository) Get(
	ctx context.Context,
	peerID string,
) (*replicationDomain.Checkpoint, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT peer_id, pulled_seq, pushed_seq, updated_at
			  FROM sync_checkpoints
			  WHERE peer_id = ?`

	var cp replicationDomain.Checkpoint
	err := querier.QueryRowContext(ctx, query, peerID).Scan(
		&cp.PeerID,
		&cp.PulledSeq,
		&cp.PushedSeq,
		&cp.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get checkpoint")
	}

	return &cp, nil
}

// Save upserts the checkpoint for a peer.
func (m *MySQLCheckpointRepository) Save(
	ctx context.Context,
	cp *replicationDomain.Checkpoint,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO sync_checkpoints (peer_id, pulled_seq, pushed_seq, updated_at)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE pulled_seq = VALUES(pulled_seq), pushed_seq = VALUES(pushed_seq), updated_at = VALUES(updated_at)`

	if _, err := querier.ExecContext(ctx, query, cp.PeerID, cp.PulledSeq, cp.PushedSeq, cp.UpdatedAt); err != nil {
		return apperrors.Wrap(err, "failed to save checkpoint")
	}
	return nil
}
