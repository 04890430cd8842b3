package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// Store persists projects. Updates only touch rows with a null deleted_at and
// return nil when the row is gone.
type Store interface {
	Create(ctx context.Context, p *models.Project) error
	// ListVisible returns projects the user owns or holds accepted access to
	ListVisible(ctx context.Context, userID int64) ([]*Listed, error)
	Update(ctx context.Context, p *models.Project) (*models.Project, error)
	SetStatus(ctx context.Context, id int64, status models.ProjectStatus) (*models.Project, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the project and fills in the generated fields
func (s *PostgresStore) Create(ctx context.Context, p *models.Project) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, address, city, owner_id, status, budget_cents, start_date, target_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, p.Address, p.City, p.OwnerID, p.Status, p.BudgetCents,
		db.NullTime(p.StartDate), db.NullTime(p.TargetDate),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// ListVisible lists owned projects and shared projects, most recently updated first
func (s *PostgresStore) ListVisible(ctx context.Context, userID int64) ([]*Listed, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+db.ProjectColumns+`, access_id, access_permission FROM (
			SELECT p.*, NULL::BIGINT AS access_id, NULL::TEXT AS access_permission
			FROM projects p
			WHERE p.owner_id = $1 AND p.deleted_at IS NULL
			UNION ALL
			SELECT p.*, pa.id, pa.permission
			FROM projects p
			JOIN project_access pa ON pa.project_id = p.id
			WHERE pa.user_id = $1 AND pa.accepted_at IS NOT NULL AND pa.deleted_at IS NULL
				AND p.deleted_at IS NULL AND p.owner_id <> $1
		) visible
		ORDER BY updated_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	result := []*Listed{}
	for rows.Next() {
		l, err := scanListed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return result, nil
}

func scanListed(rows *sql.Rows) (*Listed, error) {
	var (
		p                      models.Project
		start, target, deleted sql.NullTime
		accessID               sql.NullInt64
		permission             sql.NullString
	)
	err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Address, &p.City, &p.OwnerID, &p.Status,
		&p.BudgetCents, &start, &target, &p.CreatedAt, &p.UpdatedAt, &deleted, &accessID, &permission)
	if err != nil {
		return nil, err
	}
	p.StartDate = db.TimePtr(start)
	p.TargetDate = db.TimePtr(target)
	p.DeletedAt = db.TimePtr(deleted)

	l := &Listed{Project: &p}
	if accessID.Valid {
		l.AccessID = &accessID.Int64
		l.Permission = models.Permission(permission.String)
	}
	return l, nil
}

// Update writes the editable fields
func (s *PostgresStore) Update(ctx context.Context, p *models.Project) (*models.Project, error) {
	return s.returning(ctx, `
		UPDATE projects
		SET name = $2, description = $3, address = $4, city = $5, budget_cents = $6,
			start_date = $7, target_date = $8, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+db.ProjectColumns,
		p.ID, p.Name, p.Description, p.Address, p.City, p.BudgetCents,
		db.NullTime(p.StartDate), db.NullTime(p.TargetDate))
}

// SetStatus changes the lifecycle status
func (s *PostgresStore) SetStatus(ctx context.Context, id int64, status models.ProjectStatus) (*models.Project, error) {
	return s.returning(ctx, `
		UPDATE projects SET status = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+db.ProjectColumns,
		id, status)
}

func (s *PostgresStore) returning(ctx context.Context, query string, args ...interface{}) (*models.Project, error) {
	p, err := db.ScanProject(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

// SoftDelete marks the project deleted. Access rows are left in place; they stop
// granting anything once the project is gone.
func (s *PostgresStore) SoftDelete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	return n == 1, nil
}
