// Package repository implements data persistence for encrypted documents and
// the append-only change feed. Repositories support both PostgreSQL and MySQL
// with optimistic revision guards on every write.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/allisson/caresync/internal/database"
	documentsDomain "github.com/allisson/caresync/internal/documents/domain"
	apperrors "github.com/allisson/caresync/internal/errors"
)

const pgUniqueViolation = "23505"

// PostgreSQLDocumentRepository implements Document persistence for PostgreSQL databases.
type PostgreSQLDocumentRepository struct {
	db *sql.DB
}

// NewPostgreSQLDocumentRepository creates a new PostgreSQL Document repository instance.
func NewPostgreSQLDocumentRepository(db *sql.DB) *PostgreSQLDocumentRepository {
	return &PostgreSQLDocumentRepository{db: db}
}

// Get retrieves a document by its id, without decrypting it.
func (p *PostgreSQLDocumentRepository) Get(
	ctx context.Context,
	id string,
) (*documentsDomain.Document, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, doc_type, revision, device_id, updated_at, ciphertext, nonce, created_at
			  FROM documents
			  WHERE id = $1`

	var doc documentsDomain.Document
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.Type,
		&doc.Revision,
		&doc.DeviceID,
		&doc.UpdatedAt,
		&doc.Ciphertext,
		&doc.Nonce,
		&doc.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get document")
	}

	return &doc, nil
}

// Insert creates a document. A duplicate id means another writer created the
// document first and is reported as ErrRevisionConflict.
func (p *PostgreSQLDocumentRepository) Insert(
	ctx context.Context,
	doc *documentsDomain.Document,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO documents (id, doc_type, revision, device_id, updated_at, ciphertext, nonce, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.Type,
		doc.Revision,
		doc.DeviceID,
		doc.UpdatedAt,
		doc.Ciphertext,
		doc.Nonce,
		doc.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pgUniqueViolation {
			return documentsDomain.ErrRevisionConflict
		}
		return apperrors.Wrap(err, "failed to insert document")
	}
	return nil
}

// Update replaces a document guarded by its expected revision. When no row
// matches, the revision moved underneath the caller and ErrRevisionConflict
// is returned.
func (p *PostgreSQLDocumentRepository) Update(
	ctx context.Context,
	doc *documentsDomain.Document,
	expectedRevision uint64,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE documents
			  SET doc_type = $1, revision = $2, device_id = $3, updated_at = $4, ciphertext = $5, nonce = $6
			  WHERE id = $7 AND revision = $8`

	result, err := querier.ExecContext(
		ctx,
		query,
		doc.Type,
		doc.Revision,
		doc.DeviceID,
		doc.UpdatedAt,
		doc.Ciphertext,
		doc.Nonce,
		doc.ID,
		expectedRevision,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update document")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return documentsDomain.ErrRevisionConflict
	}

	return nil
}

// ListByType retrieves documents of the given type ordered by id with pagination.
func (p *PostgreSQLDocumentRepository) ListByType(
	ctx context.Context,
	docType string,
	offset, limit int,
) ([]*documentsDomain.Document, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, doc_type, revision, device_id, updated_at, ciphertext, nonce, created_at
			  FROM documents
			  WHERE doc_type = $1
			  ORDER BY id ASC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, docType, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list documents by type")
	}
	defer rows.Close()

	var docs []*documentsDomain.Document
	for rows.Next() {
		var doc documentsDomain.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.Type,
			&doc.Revision,
			&doc.DeviceID,
			&doc.UpdatedAt,
			&doc.Ciphertext,
			&doc.Nonce,
			&doc.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan document")
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate documents")
	}

	return docs, nil
}

// AppendChange appends a change feed entry for the document.
func (p *PostgreSQLDocumentRepository) AppendChange(
	ctx context.Context,
	documentID string,
	recordedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO document_changes (document_id, recorded_at) VALUES ($1, $2)`

	if _, err := querier.ExecContext(ctx, query, documentID, recordedAt); err != nil {
		return apperrors.Wrap(err, "failed to append change")
	}
	return nil
}

// ChangesSince retrieves change feed entries after the given sequence position.
func (p *PostgreSQLDocumentRepository) ChangesSince(
	ctx context.Context,
	seq uint64,
	limit int,
) ([]*documentsDomain.Change, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT seq, document_id, recorded_at
			  FROM document_changes
			  WHERE seq > $1
			  ORDER BY seq ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, seq, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list changes")
	}
	defer rows.Close()

	var changes []*documentsDomain.Change
	for rows.Next() {
		var change documentsDomain.Change
		if err := rows.Scan(&change.Seq, &change.DocumentID, &change.RecordedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan change")
		}
		changes = append(changes, &change)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate changes")
	}

	return changes, nil
}

// LatestChangeSeq retrieves the current tail position of the change feed.
func (p *PostgreSQLDocumentRepository) LatestChangeSeq(ctx context.Context) (uint64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COALESCE(MAX(seq), 0) FROM document_changes`

	var seq uint64
	if err := querier.QueryRowContext(ctx, query).Scan(&seq); err != nil {
		return 0, apperrors.Wrap(err, "failed to get latest change seq")
	}
	return seq, nil
}
