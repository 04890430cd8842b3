package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// UserStore persists users
type UserStore interface {
	// Upsert binds the subject to a user, creating it with role partner on first sight
	Upsert(ctx context.Context, claims *Claims) (*models.User, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*models.User, error)
	// MarkAdmin sets the admin label. It is a label only and grants no project access.
	MarkAdmin(ctx context.Context, userID int64) error
}

// PostgresUserStore implements UserStore
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates the store
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// Upsert creates or refreshes the user for the token's subject
func (s *PostgresUserStore) Upsert(ctx context.Context, claims *Claims) (*models.User, error) {
	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (subject, email, display_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, updated_at = NOW()
		RETURNING `+db.UserColumns,
		claims.Subject, claims.Email, name, models.UserRolePartner)

	user, err := db.ScanUser(row)
	if err != nil {
		if apierr.IsUniqueViolation(err) {
			return nil, apierr.Conflict("email is already bound to another account")
		}
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// FindByIDs returns the users that exist among ids
func (s *PostgresUserStore) FindByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+db.UserColumns+` FROM users WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := db.ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// MarkAdmin labels the user admin
func (s *PostgresUserStore) MarkAdmin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 AND role <> $2`,
		userID, models.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return nil
}
