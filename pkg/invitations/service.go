package invitations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/notifications"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// Operation names recorded with owner-only checks
const (
	OpList = "access.list"
)

// Messages returned on refusal
const (
	MsgEmailMismatch   = "this invitation was sent to a different email address"
	MsgAlreadyAccepted = "invitation already accepted"
	MsgUseRevoke       = "invitation already accepted; revoke access instead"
	MsgDuplicate       = "an invitation for this email already exists"
)

// Authorizer makes owner-only decisions
type Authorizer interface {
	RequireOwner(ctx context.Context, caller *models.User, projectID int64, operation string) (*access.Decision, error)
}

// ProjectFinder looks up active projects
type ProjectFinder interface {
	FindActiveProject(ctx context.Context, projectID int64) (*models.Project, error)
}

// Notifier delivers invitation notices. Failures are the caller's to log.
type Notifier interface {
	Notify(ctx context.Context, userID int64, msg notifications.Message) error
	NotifyEmail(ctx context.Context, email string, msg notifications.Message)
}

// Options configures the service
type Options struct {
	TTL time.Duration
	// AcceptURL is the invitee link; {token} is substituted
	AcceptURL string
}

// Service runs the invitation lifecycle
type Service struct {
	store    Store
	authz    Authorizer
	projects ProjectFinder
	audit    audit.Logger
	notifier Notifier
	metrics  *observability.Metrics
	opts     Options
	now      func() time.Time
}

// NewService creates the invitation service. metrics may be nil.
func NewService(store Store, authz Authorizer, projects ProjectFinder, auditLog audit.Logger,
	notifier Notifier, metrics *observability.Metrics, opts Options) *Service {
	return &Service{
		store:    store,
		authz:    authz,
		projects: projects,
		audit:    auditLog,
		notifier: notifier,
		metrics:  metrics,
		opts:     opts,
		now:      time.Now,
	}
}

// Invite invites an address to the project. Only the owner may invite.
//
// An address with accepted access is reported as already_partner and an unexpired
// invitation as pending_invitation; neither is changed. An expired invitation is
// reissued. Otherwise a new invitation is created and mailed.
func (s *Service) Invite(ctx context.Context, caller *models.User, projectID int64, input InviteInput) (result *InviteResult, err error) {
	defer func() { s.observe("invite", result, err) }()

	decision, err := s.authz.RequireOwner(ctx, caller, projectID, string(audit.ActionInvitationSend))
	if err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(input.Email)
	if !strings.Contains(email, "@") {
		return nil, apierr.Validation(map[string]string{"email": "must be a valid email address"})
	}
	if !input.Permission.Valid() {
		return nil, apierr.Validation(map[string]string{"permission": "must be one of: read write"})
	}
	if email == models.NormalizeEmail(caller.Email) {
		return nil, apierr.Validation(map[string]string{"email": "you cannot invite yourself"})
	}

	now := s.now()
	existing, err := s.store.FindLiveByEmail(ctx, projectID, email)
	if err != nil {
		return nil, apierr.Internal("failed to look up invitation", err)
	}

	var status InviteStatus
	var row *models.ProjectAccess
	switch {
	case existing != nil && existing.State(now) == models.InvitationAccepted:
		return &InviteResult{Status: StatusAlreadyPartner, Invitation: newView(existing, now)}, nil

	case existing != nil && existing.State(now) == models.InvitationPending:
		return &InviteResult{Status: StatusPendingInvitation, Invitation: newView(existing, now)}, nil

	case existing != nil:
		row, err = s.reissue(ctx, existing, input.Permission, now)
		if err != nil {
			return nil, err
		}
		status = StatusReinviteSent

	default:
		token, err := newToken()
		if err != nil {
			return nil, apierr.Internal("failed to generate invitation token", err)
		}
		row = &models.ProjectAccess{
			ProjectID:    projectID,
			InvitedEmail: email,
			Permission:   input.Permission,
			Token:        &token,
			InvitedBy:    caller.ID,
			InvitedAt:    now,
			ExpiresAt:    now.Add(s.opts.TTL),
		}
		if err := s.store.Create(ctx, row); err != nil {
			if apierr.IsUniqueViolation(err) {
				return nil, apierr.Conflict(MsgDuplicate)
			}
			return nil, apierr.Internal("failed to create invitation", err)
		}
		status = StatusInvitationSent
	}

	if err := s.record(ctx, caller.ID, audit.ActionInvitationSend, row, map[string]interface{}{
		"status":     string(status),
		"email":      row.InvitedEmail,
		"permission": string(row.Permission),
	}); err != nil {
		return nil, err
	}

	s.notifier.NotifyEmail(ctx, row.InvitedEmail, s.invitationMessage(caller, decision.Project, row))
	return &InviteResult{Status: status, Invitation: newView(row, now)}, nil
}

func (s *Service) reissue(ctx context.Context, row *models.ProjectAccess, permission models.Permission, now time.Time) (*models.ProjectAccess, error) {
	token, err := newToken()
	if err != nil {
		return nil, apierr.Internal("failed to generate invitation token", err)
	}
	expires := now.Add(s.opts.TTL)
	ok, err := s.store.Reissue(ctx, row.ID, token, permission, now, expires)
	if err != nil {
		return nil, apierr.Internal("failed to reissue invitation", err)
	}
	if !ok {
		return nil, apierr.Conflict(MsgAlreadyAccepted)
	}

	updated := *row
	updated.Token = &token
	updated.Permission = permission
	updated.InvitedAt = now
	updated.ExpiresAt = expires
	return &updated, nil
}

// Accept binds the invitation holding token to the caller. The caller's email must
// match the invited address, the invitation must not have expired and the project
// must still exist.
func (s *Service) Accept(ctx context.Context, caller *models.User, token string) (result *AccessView, err error) {
	defer func() { s.observe("accept", result, err) }()

	if caller == nil {
		return nil, apierr.Unauthorized(access.MsgAuthRequired)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apierr.Validation(map[string]string{"token": "is required"})
	}

	row, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, apierr.Internal("failed to look up invitation", err)
	}
	if row == nil {
		return nil, apierr.NotFound("invitation")
	}

	now := s.now()
	switch row.State(now) {
	case models.InvitationAccepted:
		return nil, apierr.Conflict(MsgAlreadyAccepted)
	case models.InvitationExpired:
		return nil, apierr.Forbidden(access.MsgInvitationExpired)
	}
	if models.NormalizeEmail(caller.Email) != row.InvitedEmail {
		return nil, apierr.Forbidden(MsgEmailMismatch)
	}

	project, err := s.projects.FindActiveProject(ctx, row.ProjectID)
	if err != nil {
		return nil, apierr.Internal("failed to look up project", err)
	}
	if project == nil {
		return nil, apierr.Forbidden(access.MsgNoAccess)
	}

	ok, err := s.store.MarkAccepted(ctx, row.ID, caller.ID, now)
	if err != nil {
		return nil, apierr.Internal("failed to accept invitation", err)
	}
	if !ok {
		return nil, apierr.Conflict(MsgAlreadyAccepted)
	}

	accepted := *row
	accepted.UserID = &caller.ID
	accepted.AcceptedAt = &now
	accepted.Token = nil

	if err := s.record(ctx, caller.ID, audit.ActionInvitationAccept, &accepted, map[string]interface{}{
		"permission": string(accepted.Permission),
	}); err != nil {
		return nil, err
	}

	s.notify(ctx, project.OwnerID, notifications.Message{
		Kind:  notifications.KindInvitationAccepted,
		Title: fmt.Sprintf("%s joined %s", displayName(caller), project.Name),
		Body:  fmt.Sprintf("%s accepted your invitation with %s access.", displayName(caller), accepted.Permission),
	})
	return newView(&accepted, now), nil
}

// AutoAccept accepts an invitation carried through sign-in. An unusable token is
// logged and ignored so that sign-in still succeeds; it returns nil in that case.
func (s *Service) AutoAccept(ctx context.Context, caller *models.User, token string) (*AccessView, error) {
	view, err := s.Accept(ctx, caller, token)
	if err == nil {
		return view, nil
	}
	switch apierr.CodeOf(err) {
	case apierr.CodeInternal, apierr.CodeUnauthorized:
		return nil, err
	}
	observability.FromContext(ctx).
		WithError(err).
		Info("Skipped automatic invitation acceptance")
	return nil, nil
}

// Revoke removes a partner's access or a pending invitation. Only the owner may revoke.
func (s *Service) Revoke(ctx context.Context, caller *models.User, projectID, accessID int64) (err error) {
	defer func() { s.observe("revoke", nil, err) }()

	decision, err := s.authz.RequireOwner(ctx, caller, projectID, string(audit.ActionAccessRevoke))
	if err != nil {
		return err
	}

	row, err := s.store.FindLive(ctx, accessID)
	if err != nil {
		return apierr.Internal("failed to look up access", err)
	}
	if row == nil || row.ProjectID != projectID {
		return apierr.NotFound("access")
	}

	if err := s.softDelete(ctx, row); err != nil {
		return err
	}
	if err := s.record(ctx, caller.ID, audit.ActionAccessRevoke, row, map[string]interface{}{
		"email":      row.InvitedEmail,
		"permission": string(row.Permission),
		"was":        string(row.State(s.now())),
	}); err != nil {
		return err
	}

	if row.UserID != nil {
		s.notify(ctx, *row.UserID, notifications.Message{
			Kind:  notifications.KindAccessRevoked,
			Title: fmt.Sprintf("Your access to %s was removed", decision.Project.Name),
			Body:  fmt.Sprintf("%s removed your access to %s.", displayName(caller), decision.Project.Name),
		})
	}
	return nil
}

// Resend reissues a pending or expired invitation with a new token and expiry
func (s *Service) Resend(ctx context.Context, caller *models.User, accessID int64) (result *AccessView, err error) {
	defer func() { s.observe("resend", result, err) }()

	row, decision, err := s.ownedInvitation(ctx, caller, accessID, audit.ActionInvitationResend)
	if err != nil {
		return nil, err
	}
	if row.AcceptedAt != nil {
		return nil, apierr.Conflict(MsgAlreadyAccepted)
	}

	now := s.now()
	updated, err := s.reissue(ctx, row, row.Permission, now)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, caller.ID, audit.ActionInvitationResend, updated, map[string]interface{}{
		"email": updated.InvitedEmail,
	}); err != nil {
		return nil, err
	}

	s.notifier.NotifyEmail(ctx, updated.InvitedEmail, s.invitationMessage(caller, decision.Project, updated))
	return newView(updated, now), nil
}

// Cancel withdraws a pending or expired invitation. Accepted access must be revoked instead.
func (s *Service) Cancel(ctx context.Context, caller *models.User, accessID int64) (err error) {
	defer func() { s.observe("cancel", nil, err) }()

	row, _, err := s.ownedInvitation(ctx, caller, accessID, audit.ActionInvitationCancel)
	if err != nil {
		return err
	}
	if row.AcceptedAt != nil {
		return apierr.Conflict(MsgUseRevoke)
	}

	if err := s.softDelete(ctx, row); err != nil {
		return err
	}
	return s.record(ctx, caller.ID, audit.ActionInvitationCancel, row, map[string]interface{}{
		"email": row.InvitedEmail,
	})
}

// ownedInvitation loads a live row and asserts the caller owns its project
func (s *Service) ownedInvitation(ctx context.Context, caller *models.User, accessID int64, action audit.Action) (*models.ProjectAccess, *access.Decision, error) {
	if caller == nil {
		return nil, nil, apierr.Unauthorized(access.MsgAuthRequired)
	}
	row, err := s.store.FindLive(ctx, accessID)
	if err != nil {
		return nil, nil, apierr.Internal("failed to look up invitation", err)
	}
	if row == nil {
		return nil, nil, apierr.NotFound("invitation")
	}
	decision, err := s.authz.RequireOwner(ctx, caller, row.ProjectID, string(action))
	if err != nil {
		return nil, nil, err
	}
	return row, decision, nil
}

func (s *Service) softDelete(ctx context.Context, row *models.ProjectAccess) error {
	ok, err := s.store.SoftDelete(ctx, row.ID, s.now())
	if err != nil {
		return apierr.Internal("failed to revoke access", err)
	}
	if !ok {
		return apierr.NotFound("access")
	}
	return nil
}

// List returns the project's live invitations and grants. Only the owner may list them.
func (s *Service) List(ctx context.Context, caller *models.User, projectID int64) ([]*AccessView, error) {
	if _, err := s.authz.RequireOwner(ctx, caller, projectID, OpList); err != nil {
		return nil, err
	}
	rows, err := s.store.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("failed to list project access", err)
	}
	now := s.now()
	views := make([]*AccessView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newView(row, now))
	}
	return views, nil
}

// Peek describes the invitation holding token without authentication
func (s *Service) Peek(ctx context.Context, token string) (*Preview, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apierr.NotFound("invitation")
	}
	preview, err := s.store.Preview(ctx, token)
	if err != nil {
		return nil, apierr.Internal("failed to preview invitation", err)
	}
	if preview == nil {
		return nil, apierr.NotFound("invitation")
	}
	if preview.State == "" {
		preview.State = models.InvitationPending
		if s.now().After(preview.ExpiresAt) {
			preview.State = models.InvitationExpired
		}
	}
	return preview, nil
}

func (s *Service) invitationMessage(inviter *models.User, project *models.Project, row *models.ProjectAccess) notifications.Message {
	link := ""
	if row.Token != nil {
		link = strings.ReplaceAll(s.opts.AcceptURL, "{token}", *row.Token)
	}
	return notifications.Message{
		Kind:  notifications.KindInvitation,
		Title: fmt.Sprintf("%s invited you to %s", displayName(inviter), project.Name),
		Body: fmt.Sprintf("You have been given %s access to %s. The invitation expires on %s.",
			row.Permission, project.Name, row.ExpiresAt.UTC().Format("January 2, 2006")),
		Link: link,
	}
}

// record writes the audit entry for a completed change. The change is already
// stored, so a failure here is reported to the caller as INTERNAL.
func (s *Service) record(ctx context.Context, userID int64, action audit.Action, row *models.ProjectAccess, metadata map[string]interface{}) error {
	entry := audit.Mutation(userID, action, audit.EntityProjectAccess, row.ID, row.ProjectID, metadata)
	if err := s.audit.Log(ctx, entry); err != nil {
		return apierr.Internal("failed to write audit entry", err)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID int64, msg notifications.Message) {
	if err := s.notifier.Notify(ctx, userID, msg); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("kind", msg.Kind).
			Warn("Failed to store notification")
	}
}

func (s *Service) observe(operation string, result interface{}, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = strings.ToLower(string(apierr.CodeOf(err)))
	case result != nil:
		if r, ok := result.(*InviteResult); ok && r != nil {
			outcome = string(r.Status)
		}
	}
	s.metrics.ObserveInvitation(operation, outcome)
}

func displayName(u *models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
