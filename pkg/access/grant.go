// Package access decides whether a caller may read, write or administer a project.
//
// A caller owns a project or holds a partner grant on it: an accepted, non-deleted
// project_access row. Every decision, granted or denied, is written to the audit
// log before the caller sees it. If the audit write fails the check fails.
package access

import (
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// Grant is how a caller holds access to a project. It is either OwnerGrant or
// PartnerGrant; switch on the concrete type.
type Grant interface {
	isGrant()
}

// OwnerGrant is held by the project's owner and implies write
type OwnerGrant struct{}

// PartnerGrant is held through an accepted invitation
type PartnerGrant struct {
	AccessID   int64
	Permission models.Permission
}

func (OwnerGrant) isGrant()   {}
func (PartnerGrant) isGrant() {}

// Decision is the result of a successful check
type Decision struct {
	Project *models.Project
	Grant   Grant
}

// Permission returns the effective permission of a grant
func Permission(g Grant) models.Permission {
	switch g := g.(type) {
	case OwnerGrant:
		return models.PermissionWrite
	case PartnerGrant:
		return g.Permission
	default:
		panic(fmt.Sprintf("access: unknown grant %T", g))
	}
}

// Role returns the audit role label of a grant
func Role(g Grant) string {
	switch g.(type) {
	case OwnerGrant:
		return audit.RoleOwner
	case PartnerGrant:
		return audit.RolePartner
	default:
		panic(fmt.Sprintf("access: unknown grant %T", g))
	}
}

// GrantView is the JSON form of a grant
type GrantView struct {
	Role       string            `json:"role"`
	Permission models.Permission `json:"permission"`
	AccessID   *int64            `json:"access_id,omitempty"`
}

// View describes a grant for API responses
func View(g Grant) GrantView {
	view := GrantView{Role: Role(g), Permission: Permission(g)}
	if p, ok := g.(PartnerGrant); ok {
		id := p.AccessID
		view.AccessID = &id
	}
	return view
}
