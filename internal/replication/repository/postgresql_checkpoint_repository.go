// Package repository implements sync checkpoint persistence for PostgreSQL
// and MySQL.
package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/caresync/internal/database"
	apperrors "github.com/allisson/caresync/internal/errors"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
)

// PostgreSQLCheckpointRepository implements Checkpoint persistence for PostgreSQL databases.
type PostgreSQLCheckpointRepository struct {
	db *sql.DB
}

// NewPostgreSQLCheckpointRepository creates a new PostgreSQL Checkpoint repository instance.
func NewPostgreSQLCheckpointRepository(db *sql.DB) *PostgreSQLCheckpointRepository {
	return &PostgreSQLCheckpointRepository{db: db}
}

// Get retrieves the checkpoint for a peer.
func (p *PostgreSQLCheckpointRepository) Get(
	ctx context.Context,
	peerID string,
) (*replicationDomain.Checkpoint, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT peer_id, pulled_seq, pushed_seq, updated_at
			  FROM sync_checkpoints
			  WHERE peer_id = $1`

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
func (p *PostgreSQLCheckpointRepository) Save(
	ctx context.Context,
	cp *replicationDomain.Checkpoint,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO sync_checkpoints (peer_id, pulled_seq, pushed_seq, updated_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (peer_id)
			  DO UPDATE SET pulled_seq = $2, pushed_seq = $3, updated_at = $4`

	if _, err := querier.ExecContext(ctx, query, cp.PeerID, cp.PulledSeq, cp.PushedSeq, cp.UpdatedAt); err != nil {
		return apperrors.Wrap(err, "failed to save checkpoint")
	}
	return nil
}
