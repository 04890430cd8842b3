package projects

import (
	"time"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// CreateInput is the body of a create request
type CreateInput struct {
	Name        string     `json:"name" validate:"notblank,max=200"`
	Description string     `json:"description" validate:"max=4000"`
	Address     string     `json:"address" validate:"max=500"`
	City        string     `json:"city" validate:"max=200"`
	BudgetCents int64      `json:"budget_cents" validate:"gte=0"`
	StartDate   *time.Time `json:"start_date"`
	TargetDate  *time.Time `json:"target_date"`
}

// UpdateInput is a partial update; nil fields are left unchanged
type UpdateInput struct {
	Name        *string    `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=4000"`
	Address     *string    `json:"address" validate:"omitempty,max=500"`
	City        *string    `json:"city" validate:"omitempty,max=200"`
	BudgetCents *int64     `json:"budget_cents" validate:"omitempty,gte=0"`
	StartDate   *time.Time `json:"start_date"`
	TargetDate  *time.Time `json:"target_date"`
}

// StatusInput is the body of a status change
type StatusInput struct {
	Status models.ProjectStatus `json:"status" validate:"required,oneof=planning active on_hold completed archived"`
}

// View is a project together with the caller's grant on it
type View struct {
	*models.Project
	Access access.GrantView `json:"access"`
}

// Listed is a visible project row. AccessID and Permission are set for shared
// projects only.
type Listed struct {
	Project    *models.Project
	AccessID   *int64
	Permission models.Permission
}

// Grant converts the row to the caller's grant
func (l *Listed) Grant() access.Grant {
	if l.AccessID == nil {
		return access.OwnerGrant{}
	}
	return access.PartnerGrant{AccessID: *l.AccessID, Permission: l.Permission}
}

func newView(p *models.Project, g access.Grant) *View {
	return &View{Project: p, Access: access.View(g)}
}
