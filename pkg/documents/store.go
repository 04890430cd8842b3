package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/db"
)

const documentColumns = `id, project_id, name, content_type, size_bytes, blob_key, uploaded_by, created_at, deleted_at`

// Store persists document metadata. Deleted documents are never returned.
type Store interface {
	List(ctx context.Context, projectID int64) ([]*Document, error)
	// Get returns nil when the document does not belong to the project
	Get(ctx context.Context, projectID, id int64) (*Document, error)
	Create(ctx context.Context, d *Document) error
	SoftDelete(ctx context.Context, projectID, id int64) (*Document, error)
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanDocument(s db.Scanner) (*Document, error) {
	var (
		d       Document
		deleted sql.NullTime
	)
	err := s.Scan(&d.ID, &d.ProjectID, &d.Name, &d.ContentType, &d.SizeBytes, &d.BlobKey,
		&d.UploadedBy, &d.CreatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	d.DeletedAt = db.TimePtr(deleted)
	return &d, nil
}

// List returns the project's documents, newest first
func (s *PostgresStore) List(ctx context.Context, projectID int64) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	result := []*Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return result, nil
}

// Get returns one live document
func (s *PostgresStore) Get(ctx context.Context, projectID, id int64) (*Document, error) {
	return s.one(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL`,
		id, projectID)
}

// Create inserts the metadata row
func (s *PostgresStore) Create(ctx context.Context, d *Document) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (project_id, name, content_type, size_bytes, blob_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, d.ProjectID, d.Name, d.ContentType, d.SizeBytes, d.BlobKey, d.UploadedBy).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// SoftDelete marks the document deleted and returns it, or nil if it was not live
func (s *PostgresStore) SoftDelete(ctx context.Context, projectID, id int64) (*Document, error) {
	return s.one(ctx, `
		UPDATE documents SET deleted_at = NOW()
		WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
		RETURNING `+documentColumns,
		id, projectID)
}

func (s *PostgresStore) one(ctx context.Context, query string, args ...interface{}) (*Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}
