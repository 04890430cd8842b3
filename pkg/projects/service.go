package projects

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
	"github.com/platinummonkey/groundwork/pkg/validation"
)

// Verifier makes access decisions
type Verifier interface {
	Verify(ctx context.Context, caller *models.User, projectID int64, required models.Permission) (*access.Decision, error)
	RequireOwner(ctx context.Context, caller *models.User, projectID int64, operation string) (*access.Decision, error)
}

// AdminMarker labels a user as a project owner
type AdminMarker interface {
	MarkAdmin(ctx context.Context, user *models.User) error
}

// Service manages projects
type Service struct {
	store    Store
	verifier Verifier
	audit    audit.Logger
	admins   AdminMarker
}

// NewService creates the project service
func NewService(store Store, verifier Verifier, auditLog audit.Logger, admins AdminMarker) *Service {
	return &Service{store: store, verifier: verifier, audit: auditLog, admins: admins}
}

// Create creates a project owned by the caller. The caller's role label becomes
// admin; failing to record that does not fail the create.
func (s *Service) Create(ctx context.Context, caller *models.User, input CreateInput) (*View, error) {
	if caller == nil {
		return nil, apierr.Unauthorized(access.MsgAuthRequired)
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if err := checkDates(input.StartDate, input.TargetDate); err != nil {
		return nil, err
	}

	p := &models.Project{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Address:     input.Address,
		City:        input.City,
		OwnerID:     caller.ID,
		Status:      models.ProjectStatusPlanning,
		BudgetCents: input.BudgetCents,
		StartDate:   input.StartDate,
		TargetDate:  input.TargetDate,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, apierr.Internal("failed to create project", err)
	}
	if err := s.record(ctx, caller, audit.ActionProjectCreate, p.ID, map[string]interface{}{"name": p.Name}); err != nil {
		return nil, err
	}

	if caller.Role != models.UserRoleAdmin && s.admins != nil {
		if err := s.admins.MarkAdmin(ctx, caller); err != nil {
			observability.FromContext(ctx).WithError(err).WithField("user_id", caller.ID).
				Warn("Failed to mark project owner as admin")
		}
	}
	return newView(p, access.OwnerGrant{}), nil
}

// Get returns the project and the caller's grant
func (s *Service) Get(ctx context.Context, caller *models.User, projectID int64) (*View, error) {
	decision, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead)
	if err != nil {
		return nil, err
	}
	return newView(decision.Project, decision.Grant), nil
}

// List returns every project the caller owns or holds accepted access to
func (s *Service) List(ctx context.Context, caller *models.User) ([]*View, error) {
	if caller == nil {
		return nil, apierr.Unauthorized(access.MsgAuthRequired)
	}
	rows, err := s.store.ListVisible(ctx, caller.ID)
	if err != nil {
		return nil, apierr.Internal("failed to list projects", err)
	}
	views := make([]*View, 0, len(rows))
	for _, row := range rows {
		views = append(views, newView(row.Project, row.Grant()))
	}
	return views, nil
}

// Update applies a partial update. Requires write access.
func (s *Service) Update(ctx context.Context, caller *models.User, projectID int64, input UpdateInput) (*View, error) {
	decision, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	p := *decision.Project
	changed := applyUpdate(&p, input)
	if err := checkDates(p.StartDate, p.TargetDate); err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return newView(decision.Project, decision.Grant), nil
	}

	updated, err := s.store.Update(ctx, &p)
	if err != nil {
		return nil, apierr.Internal("failed to update project", err)
	}
	if updated == nil {
		return nil, apierr.NotFound("project")
	}
	if err := s.record(ctx, caller, audit.ActionProjectUpdate, projectID, map[string]interface{}{"fields": changed}); err != nil {
		return nil, err
	}
	return newView(updated, decision.Grant), nil
}

// SetStatus moves the project to another lifecycle status. Requires write access.
func (s *Service) SetStatus(ctx context.Context, caller *models.User, projectID int64, status models.ProjectStatus) (*View, error) {
	if !status.Valid() {
		return nil, apierr.Validation(map[string]string{
			"status": "must be one of: planning active on_hold completed archived",
		})
	}
	decision, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite)
	if err != nil {
		return nil, err
	}
	if decision.Project.Status == status {
		return newView(decision.Project, decision.Grant), nil
	}

	updated, err := s.store.SetStatus(ctx, projectID, status)
	if err != nil {
		return nil, apierr.Internal("failed to update project status", err)
	}
	if updated == nil {
		return nil, apierr.NotFound("project")
	}
	err = s.record(ctx, caller, audit.ActionProjectStatus, projectID, map[string]interface{}{
		"from": decision.Project.Status,
		"to":   status,
	})
	if err != nil {
		return nil, err
	}
	return newView(updated, decision.Grant), nil
}

// Delete soft-deletes the project. Only the owner may delete it.
func (s *Service) Delete(ctx context.Context, caller *models.User, projectID int64) error {
	if _, err := s.verifier.RequireOwner(ctx, caller, projectID, string(audit.ActionProjectDelete)); err != nil {
		return err
	}
	deleted, err := s.store.SoftDelete(ctx, projectID)
	if err != nil {
		return apierr.Internal("failed to delete project", err)
	}
	if !deleted {
		return apierr.NotFound("project")
	}
	return s.record(ctx, caller, audit.ActionProjectDelete, projectID, nil)
}

// record writes a mutation entry. The change is already stored, so a failure is
// reported as INTERNAL.
func (s *Service) record(ctx context.Context, caller *models.User, action audit.Action, projectID int64, metadata map[string]interface{}) error {
	entry := audit.Mutation(caller.ID, action, audit.EntityProject, projectID, projectID, metadata)
	if err := s.audit.Log(ctx, entry); err != nil {
		return apierr.Internal("failed to write audit entry", err)
	}
	return nil
}

func applyUpdate(p *models.Project, in UpdateInput) []string {
	var changed []string
	if in.Name != nil && strings.TrimSpace(*in.Name) != p.Name {
		p.Name = strings.TrimSpace(*in.Name)
		changed = append(changed, "name")
	}
	if in.Description != nil && *in.Description != p.Description {
		p.Description = *in.Description
		changed = append(changed, "description")
	}
	if in.Address != nil && *in.Address != p.Address {
		p.Address = *in.Address
		changed = append(changed, "address")
	}
	if in.City != nil && *in.City != p.City {
		p.City = *in.City
		changed = append(changed, "city")
	}
	if in.BudgetCents != nil && *in.BudgetCents != p.BudgetCents {
		p.BudgetCents = *in.BudgetCents
		changed = append(changed, "budget_cents")
	}
	if in.StartDate != nil && (p.StartDate == nil || !in.StartDate.Equal(*p.StartDate)) {
		p.StartDate = in.StartDate
		changed = append(changed, "start_date")
	}
	if in.TargetDate != nil && (p.TargetDate == nil || !in.TargetDate.Equal(*p.TargetDate)) {
		p.TargetDate = in.TargetDate
		changed = append(changed, "target_date")
	}
	return changed
}

func checkDates(start, target *time.Time) error {
	if start != nil && target != nil && target.Before(*start) {
		return apierr.Validation(map[string]string{"target_date": "must not be before start_date"})
	}
	return nil
}
