package events

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

// Service manages the project timeline
type Service struct {
	store    Store
	verifier Verifier
	audit    audit.Logger
}

// NewService creates the event service
func NewService(store Store, verifier Verifier, auditLog audit.Logger) *Service {
	return &Service{store: store, verifier: verifier, audit: auditLog}
}

// Add schedules an event. Requires write access.
func (s *Service) Add(ctx context.Context, caller *models.User, projectID int64, input Input) (*Event, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	e := fromInput(input)
	e.ProjectID = projectID
	e.CreatedBy = caller.ID
	if err := s.store.Create(ctx, e); err != nil {
		return nil, apierr.Internal("failed to create event", err)
	}
	if err := s.record(ctx, caller, audit.ActionEventCreate, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the timeline. Requires read access.
func (s *Service) List(ctx context.Context, caller *models.User, projectID int64, filter Filter) ([]*Event, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead); err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, projectID, filter)
	if err != nil {
		return nil, apierr.Internal("failed to list events", err)
	}
	return list, nil
}

// Update replaces an event. Requires write access.
func (s *Service) Update(ctx context.Context, caller *models.User, projectID, eventID int64, input Input) (*Event, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	e := fromInput(input)
	e.ID = eventID
	e.ProjectID = projectID
	updated, err := s.store.Update(ctx, e)
	if err != nil {
		return nil, apierr.Internal("failed to update event", err)
	}
	if updated == nil {
		return nil, apierr.NotFound("event")
	}
	if err := s.record(ctx, caller, audit.ActionEventUpdate, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Complete marks an event done. Requires write access.
func (s *Service) Complete(ctx context.Context, caller *models.User, projectID, eventID int64) (*Event, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	e, err := s.store.Complete(ctx, projectID, eventID)
	if err != nil {
		return nil, apierr.Internal("failed to complete event", err)
	}
	if e == nil {
		return nil, apierr.NotFound("event")
	}
	if err := s.record(ctx, caller, audit.ActionEventComplete, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an event. Requires write access.
func (s *Service) Delete(ctx context.Context, caller *models.User, projectID, eventID int64) error {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, projectID, eventID)
	if err != nil {
		return apierr.Internal("failed to delete event", err)
	}
	if !deleted {
		return apierr.NotFound("event")
	}
	return s.record(ctx, caller, audit.ActionEventDelete, &Event{ID: eventID, ProjectID: projectID})
}

func (s *Service) record(ctx context.Context, caller *models.User, action audit.Action, e *Event) error {
	var metadata map[string]interface{}
	if e.Title != "" {
		metadata = map[string]interface{}{"title": e.Title, "kind": e.Kind}
	}
	entry := audit.Mutation(caller.ID, action, audit.EntityEvent, e.ID, e.ProjectID, metadata)
	if err := s.audit.Log(ctx, entry); err != nil {
		return apierr.Internal("failed to write audit entry", err)
	}
	return nil
}

func fromInput(in Input) *Event {
	return &Event{
		Title:       strings.TrimSpace(in.Title),
		Kind:        in.Kind,
		ScheduledAt: in.ScheduledAt,
		Notes:       in.Notes,
	}
}
