package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/db"
)

const contactColumns = `c.id, c.project_id, c.name, c.company, c.role, c.email, c.phone, c.notes,
	c.created_by, c.created_at, c.updated_at`

const ratingSummary = `(SELECT AVG(score)::FLOAT8 FROM contact_ratings r WHERE r.contact_id = c.id),
	(SELECT COUNT(*) FROM contact_ratings r WHERE r.contact_id = c.id)`

// Store persists contacts and ratings. Every lookup is scoped to the project.
type Store interface {
	List(ctx context.Context, projectID int64) ([]*Contact, error)
	// Get returns nil when the contact does not belong to the project
	Get(ctx context.Context, projectID, id int64) (*Contact, error)
	Create(ctx context.Context, c *Contact) error
	Update(ctx context.Context, c *Contact) (*Contact, error)
	Delete(ctx context.Context, projectID, id int64) (bool, error)
	// CreateRating fails with a unique violation if the user already rated the contact
	CreateRating(ctx context.Context, r *Rating) error
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanContact(s db.Scanner) (*Contact, error) {
	var (
		c   Contact
		avg sql.NullFloat64
	)
	err := s.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Company, &c.Role, &c.Email, &c.Phone, &c.Notes,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &avg, &c.RatingCount)
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		c.AverageRating = &avg.Float64
	}
	return &c, nil
}

// List returns the project's contacts by name with their rating summary
func (s *PostgresStore) List(ctx context.Context, projectID int64) ([]*Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+`, `+ratingSummary+`
		FROM contacts c WHERE c.project_id = $1 ORDER BY c.name, c.id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	result := []*Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return result, nil
}

// Get returns one contact
func (s *PostgresStore) Get(ctx context.Context, projectID, id int64) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+`, `+ratingSummary+`
		FROM contacts c WHERE c.id = $1 AND c.project_id = $2`,
		id, projectID)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// Create inserts the contact
func (s *PostgresStore) Create(ctx context.Context, c *Contact) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (project_id, name, company, role, email, phone, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, c.ProjectID, c.Name, c.Company, c.Role, c.Email, c.Phone, c.Notes, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// Update rewrites the editable fields
func (s *PostgresStore) Update(ctx context.Context, c *Contact) (*Contact, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET name = $3, company = $4, role = $5, email = $6, phone = $7, notes = $8, updated_at = NOW()
		WHERE id = $1 AND project_id = $2
	`, c.ID, c.ProjectID, c.Name, c.Company, c.Role, c.Email, c.Phone, c.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	} else if n == 0 {
		return nil, nil
	}
	return s.Get(ctx, c.ProjectID, c.ID)
}

// Delete removes the contact and its ratings
func (s *PostgresStore) Delete(ctx context.Context, projectID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete contact: %w", err)
	}
	return n == 1, nil
}

// CreateRating inserts a rating
func (s *PostgresStore) CreateRating(ctx context.Context, r *Rating) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contact_ratings (contact_id, user_id, score, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.ContactID, r.UserID, r.Score, r.Comment).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rating: %w", err)
	}
	return nil
}
