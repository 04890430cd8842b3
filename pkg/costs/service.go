package costs

import (
	"context"
	"strings"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/validation"
)

// Verifier makes access decisions
type Verifier interface {
	Verify(ctx context.Context, caller *models.User, projectID int64, required models.Permission) (*access.Decision, error)
}

// Service manages cost lines
type Service struct {
	store    Store
	verifier Verifier
	audit    audit.Logger
}

// NewService creates the cost service
func NewService(store Store, verifier Verifier, auditLog audit.Logger) *Service {
	return &Service{store: store, verifier: verifier, audit: auditLog}
}

// Add records a cost line. Requires write access.
func (s *Service) Add(ctx context.Context, caller *models.User, projectID int64, input Input) (*Item, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	item := fromInput(input)
	item.ProjectID = projectID
	item.CreatedBy = caller.ID
	if err := s.store.Create(ctx, item); err != nil {
		return nil, apierr.Internal("failed to create cost item", err)
	}
	if err := s.record(ctx, caller, audit.ActionCostCreate, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Update replaces a cost line. Requires write access.
func (s *Service) Update(ctx context.Context, caller *models.User, projectID, itemID int64, input Input) (*Item, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	item := fromInput(input)
	item.ID = itemID
	item.ProjectID = projectID
	updated, err := s.store.Update(ctx, item)
	if err != nil {
		return nil, apierr.Internal("failed to update cost item", err)
	}
	if updated == nil {
		return nil, apierr.NotFound("cost item")
	}
	if err := s.record(ctx, caller, audit.ActionCostUpdate, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a cost line. Requires write access.
func (s *Service) Delete(ctx context.Context, caller *models.User, projectID, itemID int64) error {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, projectID, itemID)
	if err != nil {
		return apierr.Internal("failed to delete cost item", err)
	}
	if !deleted {
		return apierr.NotFound("cost item")
	}
	return s.record(ctx, caller, audit.ActionCostDelete, &Item{ID: itemID, ProjectID: projectID})
}

// List returns the project's cost lines. Requires read access.
func (s *Service) List(ctx context.Context, caller *models.User, projectID int64) ([]*Item, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead); err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("failed to list cost items", err)
	}
	return items, nil
}

// Breakdown totals spend per category against the budget. Requires read access.
func (s *Service) Breakdown(ctx context.Context, caller *models.User, projectID int64) (*Breakdown, error) {
	decision, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.Totals(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("failed to total cost items", err)
	}
	return NewBreakdown(projectID, decision.Project.BudgetCents, totals), nil
}

func (s *Service) record(ctx context.Context, caller *models.User, action audit.Action, item *Item) error {
	metadata := map[string]interface{}{}
	if item.Category != "" {
		metadata["category"] = item.Category
		metadata["amount_cents"] = item.AmountCents
	}
	entry := audit.Mutation(caller.ID, action, audit.EntityCostItem, item.ID, item.ProjectID, metadata)
	if err := s.audit.Log(ctx, entry); err != nil {
		return apierr.Internal("failed to write audit entry", err)
	}
	return nil
}

func fromInput(in Input) *Item {
	return &Item{
		Category:    in.Category,
		Description: strings.TrimSpace(in.Description),
		Vendor:      strings.TrimSpace(in.Vendor),
		AmountCents: in.AmountCents,
		IncurredOn:  in.IncurredOn,
	}
}
