package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/groundwork/pkg/db"
)

const eventColumns = `id, project_id, title, kind, scheduled_at, completed_at, notes,
	created_by, created_at, updated_at`

// Store persists events. Every lookup is scoped to the project.
type Store interface {
	List(ctx context.Context, projectID int64, filter Filter) ([]*Event, error)
	Create(ctx context.Context, e *Event) error
	// Update returns nil when the event does not belong to the project
	Update(ctx context.Context, e *Event) (*Event, error)
	// Complete stamps completed_at once; completing again keeps the first stamp
	Complete(ctx context.Context, projectID, id int64) (*Event, error)
	Delete(ctx context.Context, projectID, id int64) (bool, error)
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ScanEvent reads one row selected with the event column list
func ScanEvent(s db.Scanner) (*Event, error) {
	var (
		e         Event
		completed sql.NullTime
	)
	err := s.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Kind, &e.ScheduledAt, &completed, &e.Notes,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.CompletedAt = db.TimePtr(completed)
	return &e, nil
}

// List returns events in schedule order
func (s *PostgresStore) List(ctx context.Context, projectID int64, filter Filter) ([]*Event, error) {
	var q strings.Builder
	q.WriteString(`SELECT ` + eventColumns + ` FROM events WHERE project_id = $1`)
	args := []interface{}{projectID}
	if filter.Upcoming {
		q.WriteString(` AND completed_at IS NULL AND scheduled_at >= NOW()`)
	}
	q.WriteString(` ORDER BY scheduled_at ASC, id ASC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q.WriteString(fmt.Sprintf(` LIMIT $%d`, len(args)))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	result := []*Event{}
	for rows.Next() {
		e, err := ScanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return result, nil
}

// Create inserts the event
func (s *PostgresStore) Create(ctx context.Context, e *Event) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO events (project_id, title, kind, scheduled_at, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, e.ProjectID, e.Title, e.Kind, e.ScheduledAt, e.Notes, e.CreatedBy).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// Update writes the editable fields
func (s *PostgresStore) Update(ctx context.Context, e *Event) (*Event, error) {
	return s.returning(ctx, `
		UPDATE events SET title = $3, kind = $4, scheduled_at = $5, notes = $6, updated_at = NOW()
		WHERE id = $1 AND project_id = $2
		RETURNING `+eventColumns,
		e.ID, e.ProjectID, e.Title, e.Kind, e.ScheduledAt, e.Notes)
}

// Complete marks the event done
func (s *PostgresStore) Complete(ctx context.Context, projectID, id int64) (*Event, error) {
	return s.returning(ctx, `
		UPDATE events SET completed_at = COALESCE(completed_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND project_id = $2
		RETURNING `+eventColumns,
		id, projectID)
}

func (s *PostgresStore) returning(ctx context.Context, query string, args ...interface{}) (*Event, error) {
	e, err := ScanEvent(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return e, nil
}

// Delete removes the event
func (s *PostgresStore) Delete(ctx context.Context, projectID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	return n == 1, nil
}
