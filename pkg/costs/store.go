package costs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/db"
)

const itemColumns = `id, project_id, category, description, vendor, amount_cents, incurred_on,
	created_by, created_at, updated_at`

// Store persists cost lines. Every lookup is scoped to the project.
type Store interface {
	List(ctx context.Context, projectID int64) ([]*Item, error)
	Create(ctx context.Context, item *Item) error
	// Update returns nil when the line does not belong to the project
	Update(ctx context.Context, item *Item) (*Item, error)
	Delete(ctx context.Context, projectID, id int64) (bool, error)
	Totals(ctx context.Context, projectID int64) (map[Category]CategoryTotal, error)
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanItem(s db.Scanner) (*Item, error) {
	var it Item
	err := s.Scan(&it.ID, &it.ProjectID, &it.Category, &it.Description, &it.Vendor, &it.AmountCents,
		&it.IncurredOn, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// List returns the project's cost lines, most recent first
func (s *PostgresStore) List(ctx context.Context, projectID int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM cost_items WHERE project_id = $1 ORDER BY incurred_on DESC, id DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost items: %w", err)
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cost items: %w", err)
	}
	return items, nil
}

// Create inserts the line and fills in the generated fields
func (s *PostgresStore) Create(ctx context.Context, it *Item) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cost_items (project_id, category, description, vendor, amount_cents, incurred_on, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, it.ProjectID, it.Category, it.Description, it.Vendor, it.AmountCents, it.IncurredOn, it.CreatedBy,
	).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cost item: %w", err)
	}
	return nil
}

// Update rewrites the editable fields
func (s *PostgresStore) Update(ctx context.Context, it *Item) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE cost_items
		SET category = $3, description = $4, vendor = $5, amount_cents = $6, incurred_on = $7, updated_at = NOW()
		WHERE id = $1 AND project_id = $2
		RETURNING `+itemColumns,
		it.ID, it.ProjectID, it.Category, it.Description, it.Vendor, it.AmountCents, it.IncurredOn)
	updated, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cost item: %w", err)
	}
	return updated, nil
}

// Delete removes the line
func (s *PostgresStore) Delete(ctx context.Context, projectID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cost_items WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cost item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete cost item: %w", err)
	}
	return n == 1, nil
}

// Totals sums amounts per category
func (s *PostgresStore) Totals(ctx context.Context, projectID int64) (map[Category]CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM cost_items WHERE project_id = $1
		GROUP BY category
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to total cost items: %w", err)
	}
	defer rows.Close()

	totals := make(map[Category]CategoryTotal)
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.TotalCents, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan cost totals: %w", err)
		}
		totals[t.Category] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cost totals: %w", err)
	}
	return totals, nil
}
