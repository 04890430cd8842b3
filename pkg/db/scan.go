package db

import (
	"database/sql"
	"time"

	"github.com/platinummonkey/groundwork/pkg/models"
)

// Scanner is satisfied by *sql.Row and *sql.Rows
type Scanner interface {
	Scan(dest ...interface{}) error
}

// ProjectColumns is the column list read by ScanProject
const ProjectColumns = `id, name, description, address, city, owner_id, status, budget_cents,
	start_date, target_date, created_at, updated_at, deleted_at`

// ScanProject reads one row selected with ProjectColumns
func ScanProject(s Scanner) (*models.Project, error) {
	var (
		p                      models.Project
		start, target, deleted sql.NullTime
	)
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Address, &p.City, &p.OwnerID, &p.Status,
		&p.BudgetCents, &start, &target, &p.CreatedAt, &p.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	p.StartDate = TimePtr(start)
	p.TargetDate = TimePtr(target)
	p.DeletedAt = TimePtr(deleted)
	return &p, nil
}

// ProjectAccessColumns is the column list read by ScanProjectAccess
const ProjectAccessColumns = `id, project_id, user_id, invited_email, permission, token,
	invited_by, invited_at, expires_at, accepted_at, deleted_at`

// ScanProjectAccess reads one row selected with ProjectAccessColumns
func ScanProjectAccess(s Scanner) (*models.ProjectAccess, error) {
	var (
		a                 models.ProjectAccess
		userID            sql.NullInt64
		token             sql.NullString
		accepted, deleted sql.NullTime
	)
	err := s.Scan(&a.ID, &a.ProjectID, &userID, &a.InvitedEmail, &a.Permission, &token,
		&a.InvitedBy, &a.InvitedAt, &a.ExpiresAt, &accepted, &deleted)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		a.UserID = &userID.Int64
	}
	if token.Valid {
		a.Token = &token.String
	}
	a.AcceptedAt = TimePtr(accepted)
	a.DeletedAt = TimePtr(deleted)
	return &a, nil
}

// UserColumns is the column list read by ScanUser
const UserColumns = `id, subject, email, display_name, role, created_at, updated_at`

// ScanUser reads one row selected with UserColumns
func ScanUser(s Scanner) (*models.User, error) {
	var u models.User
	if err := s.Scan(&u.ID, &u.Subject, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// TimePtr converts a nullable time to a pointer
func TimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// NullTime converts a pointer to a nullable time parameter
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
