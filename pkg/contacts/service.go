package contacts

import (
	"context"
	"strings"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/validation"
)

// MsgAlreadyRated is returned when a user rates the same contact twice
const MsgAlreadyRated = "you have already rated this contact"

// Verifier makes access decisions
type Verifier interface {
	Verify(ctx context.Context, caller *models.User, projectID int64, required models.Permission) (*access.Decision, error)
}

// Service manages contacts
type Service struct {
	store    Store
	verifier Verifier
	audit    audit.Logger
}

// NewService creates the contact service
func NewService(store Store, verifier Verifier, auditLog audit.Logger) *Service {
	return &Service{store: store, verifier: verifier, audit: auditLog}
}

// Add creates a contact. Requires write access.
func (s *Service) Add(ctx context.Context, caller *models.User, projectID int64, input Input) (*Contact, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	c := fromInput(input)
	c.ProjectID = projectID
	c.CreatedBy = caller.ID
	if err := s.store.Create(ctx, c); err != nil {
		return nil, apierr.Internal("failed to create contact", err)
	}
	if err := s.record(ctx, caller, audit.ActionContactCreate, c.ID, projectID, map[string]interface{}{"name": c.Name}); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces a contact's details. Requires write access.
func (s *Service) Update(ctx context.Context, caller *models.User, projectID, contactID int64, input Input) (*Contact, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	c := fromInput(input)
	c.ID = contactID
	c.ProjectID = projectID
	updated, err := s.store.Update(ctx, c)
	if err != nil {
		return nil, apierr.Internal("failed to update contact", err)
	}
	if updated == nil {
		return nil, apierr.NotFound("contact")
	}
	if err := s.record(ctx, caller, audit.ActionContactUpdate, contactID, projectID, nil); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a contact and its ratings. Requires write access.
func (s *Service) Delete(ctx context.Context, caller *models.User, projectID, contactID int64) error {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, projectID, contactID)
	if err != nil {
		return apierr.Internal("failed to delete contact", err)
	}
	if !deleted {
		return apierr.NotFound("contact")
	}
	return s.record(ctx, caller, audit.ActionContactDelete, contactID, projectID, nil)
}

// List returns the project's contacts with average ratings. Requires read access.
func (s *Service) List(ctx context.Context, caller *models.User, projectID int64) ([]*Contact, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead); err != nil {
		return nil, err
	}
	contacts, err := s.store.List(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("failed to list contacts", err)
	}
	return contacts, nil
}

// Rate records the caller's score for a contact. Read access is enough; each user
// may rate a contact once.
func (s *Service) Rate(ctx context.Context, caller *models.User, projectID, contactID int64, input RatingInput) (*Rating, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	contact, err := s.store.Get(ctx, projectID, contactID)
	if err != nil {
		return nil, apierr.Internal("failed to get contact", err)
	}
	if contact == nil {
		return nil, apierr.NotFound("contact")
	}

	rating := &Rating{
		ContactID: contactID,
		UserID:    caller.ID,
		Score:     input.Score,
		Comment:   strings.TrimSpace(input.Comment),
	}
	if err := s.store.CreateRating(ctx, rating); err != nil {
		if apierr.IsUniqueViolation(err) {
			return nil, apierr.Conflict(MsgAlreadyRated)
		}
		return nil, apierr.Internal("failed to create rating", err)
	}
	if err := s.record(ctx, caller, audit.ActionContactRate, contactID, projectID, map[string]interface{}{"score": rating.Score}); err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *Service) record(ctx context.Context, caller *models.User, action audit.Action, contactID, projectID int64, metadata map[string]interface{}) error {
	entry := audit.Mutation(caller.ID, action, audit.EntityContact, contactID, projectID, metadata)
	if err := s.audit.Log(ctx, entry); err != nil {
		return apierr.Internal("failed to write audit entry", err)
	}
	return nil
}

func fromInput(in Input) *Contact {
	return &Contact{
		Name:    strings.TrimSpace(in.Name),
		Company: strings.TrimSpace(in.Company),
		Role:    strings.TrimSpace(in.Role),
		Email:   models.NormalizeEmail(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Notes:   in.Notes,
	}
}
