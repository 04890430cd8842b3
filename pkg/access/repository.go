package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// Repository looks up the rows an access decision depends on.
// Both methods return nil and no error when nothing matches.
type Repository interface {
	FindActiveProject(ctx context.Context, projectID int64) (*models.Project, error)
	FindAcceptedAccess(ctx context.Context, projectID, userID int64) (*models.ProjectAccess, error)
}

// PostgresRepository reads projects and project_access. It must be given the primary
// pool so that a grant is visible as soon as it is accepted.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates the repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindActiveProject returns the project unless it is missing or soft-deleted
func (r *PostgresRepository) FindActiveProject(ctx context.Context, projectID int64) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+db.ProjectColumns+` FROM projects WHERE id = $1 AND deleted_at IS NULL`,
		projectID)

	project, err := db.ScanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

// FindAcceptedAccess returns the caller's live grant on the project
func (r *PostgresRepository) FindAcceptedAccess(ctx context.Context, projectID, userID int64) (*models.ProjectAccess, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+db.ProjectAccessColumns+` FROM project_access
		WHERE project_id = $1 AND user_id = $2
			AND accepted_at IS NOT NULL AND deleted_at IS NULL`,
		projectID, userID)

	grant, err := db.ScanProjectAccess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project access: %w", err)
	}
	return grant, nil
}
