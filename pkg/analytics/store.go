package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/events"
)

// Store runs the summary queries. Every query is restricted to the projects the
// user can read.
type Store interface {
	StatusTotals(ctx context.Context, userID int64) ([]StatusTotal, error)
	SpendByCategory(ctx context.Context, userID int64) (map[costs.Category]costs.CategoryTotal, error)
	UpcomingEvents(ctx context.Context, userID int64, limit int) ([]*UpcomingEvent, error)
	ProjectHealth(ctx context.Context, userID int64) ([]ProjectHealth, error)
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// StatusTotals counts projects and sums budgets per status
func (s *PostgresStore) StatusTotals(ctx context.Context, userID int64) ([]StatusTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(budget_cents), 0)
		FROM projects
		WHERE id IN (`+db.VisibleProjectIDs+`)
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status totals: %w", err)
	}
	defer rows.Close()

	totals := []StatusTotal{}
	for rows.Next() {
		var t StatusTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.BudgetCents); err != nil {
			return nil, fmt.Errorf("failed to scan status total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status totals: %w", err)
	}
	return totals, nil
}

// SpendByCategory sums cost lines per category
func (s *PostgresStore) SpendByCategory(ctx context.Context, userID int64) (map[costs.Category]costs.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM cost_items
		WHERE project_id IN (`+db.VisibleProjectIDs+`)
		GROUP BY category
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query spend: %w", err)
	}
	defer rows.Close()

	totals := make(map[costs.Category]costs.CategoryTotal)
	for rows.Next() {
		var t costs.CategoryTotal
		if err := rows.Scan(&t.Category, &t.TotalCents, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan spend: %w", err)
		}
		totals[t.Category] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spend: %w", err)
	}
	return totals, nil
}

// UpcomingEvents lists incomplete future events across the portfolio, soonest first
func (s *PostgresStore) UpcomingEvents(ctx context.Context, userID int64, limit int) ([]*UpcomingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.project_id, e.title, e.kind, e.scheduled_at, e.completed_at, e.notes,
			e.created_by, e.created_at, e.updated_at, p.name
		FROM events e
		JOIN projects p ON p.id = e.project_id
		WHERE e.project_id IN (`+db.VisibleProjectIDs+`)
			AND e.completed_at IS NULL AND e.scheduled_at >= NOW()
		ORDER BY e.scheduled_at ASC, e.id ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming events: %w", err)
	}
	defer rows.Close()

	result := []*UpcomingEvent{}
	for rows.Next() {
		var (
			e         events.Event
			completed sql.NullTime
			name      string
		)
		err := rows.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Kind, &e.ScheduledAt, &completed, &e.Notes,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &name)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upcoming event: %w", err)
		}
		e.CompletedAt = db.TimePtr(completed)
		result = append(result, &UpcomingEvent{Event: &e, ProjectName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upcoming events: %w", err)
	}
	return result, nil
}

// ProjectHealth returns spend and overdue event counts per project
func (s *PostgresStore) ProjectHealth(ctx context.Context, userID int64) ([]ProjectHealth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.status, p.budget_cents,
			(SELECT COALESCE(SUM(c.amount_cents), 0) FROM cost_items c WHERE c.project_id = p.id),
			(SELECT COUNT(*) FROM events e
				WHERE e.project_id = p.id AND e.completed_at IS NULL AND e.scheduled_at < NOW())
		FROM projects p
		WHERE p.id IN (`+db.VisibleProjectIDs+`)
		ORDER BY p.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project health: %w", err)
	}
	defer rows.Close()

	result := []ProjectHealth{}
	for rows.Next() {
		var h ProjectHealth
		if err := rows.Scan(&h.ProjectID, &h.ProjectName, &h.Status, &h.BudgetCents, &h.SpentCents, &h.OverdueEvents); err != nil {
			return nil, fmt.Errorf("failed to scan project health: %w", err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project health: %w", err)
	}
	return result, nil
}
