// Package models holds the entity types shared by the Groundwork stores and services.
package models

import (
	"strings"
	"time"
)

// UserRole is a system-wide label. It is distinct from per-project permissions.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRolePartner UserRole = "partner"
)

// User is an authenticated account. Credentials live with the identity provider.
type User struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"-"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        UserRole  `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProjectStatus is the lifecycle stage of a development project
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// ProjectStatuses lists every status in lifecycle order
var ProjectStatuses = []ProjectStatus{
	ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold,
	ProjectStatusCompleted, ProjectStatusArchived,
}

// Valid reports whether s is a known status
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

// Project is a real-estate development project owned by exactly one user
type Project struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Address     string        `json:"address,omitempty"`
	City        string        `json:"city,omitempty"`
	OwnerID     int64         `json:"owner_id"`
	Status      ProjectStatus `json:"status"`
	// BudgetCents is the planned total cost in cents
	BudgetCents int64      `json:"budget_cents"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Permission is the level of a partner grant
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is read or write
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Satisfies reports whether a grant at level p covers the required level
func (p Permission) Satisfies(required Permission) bool {
	if required == PermissionWrite {
		return p == PermissionWrite
	}
	return p == PermissionRead || p == PermissionWrite
}

// InvitationState is derived from a ProjectAccess row; it is never stored
type InvitationState string

const (
	InvitationPending  InvitationState = "pending"
	InvitationAccepted InvitationState = "accepted"
	InvitationExpired  InvitationState = "expired"
	InvitationRevoked  InvitationState = "revoked"
)

// ProjectAccess is a partner grant. It starts as a pending invitation and becomes
// live access once accepted.
type ProjectAccess struct {
	ID           int64      `json:"id"`
	ProjectID    int64      `json:"project_id"`
	UserID       *int64     `json:"user_id,omitempty"`
	InvitedEmail string     `json:"invited_email"`
	Permission   Permission `json:"permission"`
	Token        *string    `json:"-"`
	InvitedBy    int64      `json:"invited_by"`
	InvitedAt    time.Time  `json:"invited_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// State derives the invitation state at the given instant
func (a *ProjectAccess) State(now time.Time) InvitationState {
	switch {
	case a.DeletedAt != nil:
		return InvitationRevoked
	case a.AcceptedAt != nil:
		return InvitationAccepted
	case now.After(a.ExpiresAt):
		return InvitationExpired
	default:
		return InvitationPending
	}
}

// Live reports whether the row currently grants access
func (a *ProjectAccess) Live() bool {
	return a.AcceptedAt != nil && a.DeletedAt == nil
}
