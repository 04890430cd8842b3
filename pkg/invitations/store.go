package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// Store persists invitations. Finders return nil and no error when nothing matches.
// Only rows with a null deleted_at are ever returned.
type Store interface {
	FindLiveByEmail(ctx context.Context, projectID int64, email string) (*models.ProjectAccess, error)
	FindLive(ctx context.Context, id int64) (*models.ProjectAccess, error)
	FindByToken(ctx context.Context, token string) (*models.ProjectAccess, error)
	ListByProject(ctx context.Context, projectID int64) ([]*models.ProjectAccess, error)
	Create(ctx context.Context, a *models.ProjectAccess) error
	// Reissue gives a pending or expired invitation a new token and expiry
	Reissue(ctx context.Context, id int64, token string, permission models.Permission, invitedAt, expiresAt time.Time) (bool, error)
	// MarkAccepted binds the user and clears the token. It reports false if the row
	// was accepted or deleted in the meantime.
	MarkAccepted(ctx context.Context, id, userID int64, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error)
	Preview(ctx context.Context, token string) (*Preview, error)
	// ListExpiring returns pending invitations expiring in (from, until] that have not been reminded
	ListExpiring(ctx context.Context, from, until time.Time) ([]*Pending, error)
	// RecordReminder marks the invitation reminded. It reports false if it already was.
	RecordReminder(ctx context.Context, accessID int64, at time.Time) (bool, error)
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) findOne(ctx context.Context, where string, args ...interface{}) (*models.ProjectAccess, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+db.ProjectAccessColumns+` FROM project_access WHERE deleted_at IS NULL AND `+where,
		args...)
	a, err := db.ScanProjectAccess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return a, nil
}

// FindLiveByEmail returns the live row for the address on the project
func (s *PostgresStore) FindLiveByEmail(ctx context.Context, projectID int64, email string) (*models.ProjectAccess, error) {
	return s.findOne(ctx, `project_id = $1 AND invited_email = $2`, projectID, email)
}

// FindLive returns a live row by id
func (s *PostgresStore) FindLive(ctx context.Context, id int64) (*models.ProjectAccess, error) {
	return s.findOne(ctx, `id = $1`, id)
}

// FindByToken returns the live row holding token
func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*models.ProjectAccess, error) {
	return s.findOne(ctx, `token = $1`, token)
}

// ListByProject lists live invitations and grants, newest first
func (s *PostgresStore) ListByProject(ctx context.Context, projectID int64) ([]*models.ProjectAccess, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+db.ProjectAccessColumns+` FROM project_access
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY invited_at DESC, id DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project access: %w", err)
	}
	defer rows.Close()

	result := []*models.ProjectAccess{}
	for rows.Next() {
		a, err := db.ScanProjectAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project access: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project access: %w", err)
	}
	return result, nil
}

// Create inserts a pending invitation. A concurrent invite for the same address
// fails with a unique violation.
func (s *PostgresStore) Create(ctx context.Context, a *models.ProjectAccess) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO project_access (project_id, invited_email, permission, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.ProjectID, a.InvitedEmail, a.Permission, a.Token, a.InvitedBy, a.InvitedAt, a.ExpiresAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// Reissue replaces the token and expiry and clears any reminder already sent
func (s *PostgresStore) Reissue(ctx context.Context, id int64, token string, permission models.Permission, invitedAt, expiresAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE project_access
		SET token = $2, permission = $3, invited_at = $4, expires_at = $5
		WHERE id = $1 AND accepted_at IS NULL AND deleted_at IS NULL
	`, id, token, permission, invitedAt, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to reissue invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM invitation_reminders WHERE access_id = $1`, id); err != nil {
		return false, fmt.Errorf("failed to reset reminder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// MarkAccepted binds the invitation to the user
func (s *PostgresStore) MarkAccepted(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE project_access
		SET user_id = $2, accepted_at = $3, token = NULL
		WHERE id = $1 AND accepted_at IS NULL AND deleted_at IS NULL
	`, id, userID, at)
	return affected(result, err, "failed to accept invitation")
}

// SoftDelete revokes the row and clears its token
func (s *PostgresStore) SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE project_access SET deleted_at = $2, token = NULL
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	return affected(result, err, "failed to revoke access")
}

func affected(result sql.Result, err error, msg string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("%s: %w", msg, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Preview joins the invitation with its project and inviter. Deleted projects are excluded.
func (s *PostgresStore) Preview(ctx context.Context, token string) (*Preview, error) {
	p := &Preview{}
	var acceptedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT pa.project_id, p.name, u.display_name, pa.invited_email, pa.permission, pa.expires_at, pa.accepted_at
		FROM project_access pa
		JOIN projects p ON p.id = pa.project_id AND p.deleted_at IS NULL
		JOIN users u ON u.id = pa.invited_by
		WHERE pa.token = $1 AND pa.deleted_at IS NULL
	`, token).Scan(&p.ProjectID, &p.ProjectName, &p.InviterName, &p.InvitedEmail, &p.Permission, &p.ExpiresAt, &acceptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to preview invitation: %w", err)
	}
	if acceptedAt.Valid {
		p.State = models.InvitationAccepted
	}
	return p, nil
}

// ListExpiring finds invitations due a reminder
func (s *PostgresStore) ListExpiring(ctx context.Context, from, until time.Time) ([]*Pending, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pa.id, pa.project_id, pa.invited_email, pa.permission, pa.token, pa.invited_by,
			pa.invited_at, pa.expires_at, p.name, u.display_name
		FROM project_access pa
		JOIN projects p ON p.id = pa.project_id AND p.deleted_at IS NULL
		JOIN users u ON u.id = pa.invited_by
		LEFT JOIN invitation_reminders r ON r.access_id = pa.id
		WHERE pa.accepted_at IS NULL AND pa.deleted_at IS NULL AND pa.token IS NOT NULL
			AND pa.expires_at > $1 AND pa.expires_at <= $2
			AND r.access_id IS NULL
		ORDER BY pa.expires_at
	`, from, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring invitations: %w", err)
	}
	defer rows.Close()

	var result []*Pending
	for rows.Next() {
		a := &models.ProjectAccess{}
		p := &Pending{Access: a}
		var token string
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.InvitedEmail, &a.Permission, &token, &a.InvitedBy,
			&a.InvitedAt, &a.ExpiresAt, &p.ProjectName, &p.InviterName); err != nil {
			return nil, fmt.Errorf("failed to scan expiring invitation: %w", err)
		}
		a.Token = &token
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expiring invitations: %w", err)
	}
	return result, nil
}

// RecordReminder inserts the reminder marker
func (s *PostgresStore) RecordReminder(ctx context.Context, accessID int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO invitation_reminders (access_id, sent_at) VALUES ($1, $2)
		ON CONFLICT (access_id) DO NOTHING
	`, accessID, at)
	return affected(result, err, "failed to record reminder")
}
