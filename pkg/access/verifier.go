package access

import (
	"context"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// Messages returned to callers on denial
const (
	MsgAuthRequired       = "authentication required"
	MsgNoAccess           = "you do not have access to this project"
	MsgOwnerOnly          = "only the project owner can perform this action"
	MsgWriteRequired      = "write permission required"
	MsgInvitationExpired  = "invitation expired"
	msgAccessCheckFailure = "access check failed"
)

// Reasons recorded in the audit log
const (
	reasonUnauthenticated = "no authenticated caller"
	reasonProjectMissing  = "project not found or deleted"
	reasonOwner           = "caller owns the project"
	reasonPartner         = "accepted partner access"
	reasonNoGrant         = "no accepted access"
	reasonReadOnly        = "read permission does not allow write"
	reasonNotOwner        = "owner only"
	reasonLookupFailed    = "lookup failed"
)

// Verifier makes and audits access decisions
type Verifier struct {
	repo    Repository
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewVerifier creates a verifier. metrics may be nil.
func NewVerifier(repo Repository, auditLog audit.Logger, metrics *observability.Metrics) *Verifier {
	return &Verifier{repo: repo, audit: auditLog, metrics: metrics}
}

// Verify checks that caller may access the project at the required level.
//
// The decision is not held by a lock or transaction. A grant revoked after Verify
// returns does not stop the write the caller performs next.
func (v *Verifier) Verify(ctx context.Context, caller *models.User, projectID int64, required models.Permission) (*Decision, error) {
	record := audit.AccessDecision{ProjectID: projectID, Required: required, Role: audit.RoleNone}

	if caller == nil {
		record.Reason = reasonUnauthenticated
		return v.deny(ctx, record, apierr.Unauthorized(MsgAuthRequired))
	}
	record.UserID = &caller.ID

	project, err := v.repo.FindActiveProject(ctx, projectID)
	if err != nil {
		record.Reason = reasonLookupFailed
		return v.deny(ctx, record, apierr.Internal(msgAccessCheckFailure, err))
	}
	if project == nil {
		record.Reason = reasonProjectMissing
		return v.deny(ctx, record, apierr.Forbidden(MsgNoAccess))
	}

	if project.OwnerID == caller.ID {
		record.Reason = reasonOwner
		return v.grant(ctx, record, &Decision{Project: project, Grant: OwnerGrant{}})
	}

	row, err := v.repo.FindAcceptedAccess(ctx, projectID, caller.ID)
	if err != nil {
		record.Reason = reasonLookupFailed
		return v.deny(ctx, record, apierr.Internal(msgAccessCheckFailure, err))
	}
	if row == nil || !row.Live() {
		record.Reason = reasonNoGrant
		return v.deny(ctx, record, apierr.Forbidden(MsgNoAccess))
	}

	record.Role = audit.RolePartner
	record.Permission = row.Permission
	if !row.Permission.Satisfies(required) {
		record.Reason = reasonReadOnly
		return v.deny(ctx, record, apierr.Forbidden(MsgWriteRequired))
	}

	record.Reason = reasonPartner
	return v.grant(ctx, record, &Decision{
		Project: project,
		Grant:   PartnerGrant{AccessID: row.ID, Permission: row.Permission},
	})
}

// RequireOwner checks that caller owns the project. Partners are refused whatever
// their permission. operation names the guarded action in the audit log.
func (v *Verifier) RequireOwner(ctx context.Context, caller *models.User, projectID int64, operation string) (*Decision, error) {
	record := audit.AccessDecision{
		ProjectID: projectID,
		Operation: operation,
		Required:  models.PermissionWrite,
		Role:      audit.RoleNone,
	}

	if caller == nil {
		record.Reason = reasonUnauthenticated
		return v.deny(ctx, record, apierr.Unauthorized(MsgAuthRequired))
	}
	record.UserID = &caller.ID

	project, err := v.repo.FindActiveProject(ctx, projectID)
	if err != nil {
		record.Reason = reasonLookupFailed
		return v.deny(ctx, record, apierr.Internal(msgAccessCheckFailure, err))
	}
	if project == nil {
		record.Reason = reasonProjectMissing
		return v.deny(ctx, record, apierr.Forbidden(MsgNoAccess))
	}

	if project.OwnerID == caller.ID {
		record.Role = audit.RoleOwner
		record.Permission = models.PermissionWrite
		record.Reason = reasonOwner
		return v.grant(ctx, record, &Decision{Project: project, Grant: OwnerGrant{}})
	}

	// a partner is told the action is owner-only; anyone else only learns they lack access
	row, err := v.repo.FindAcceptedAccess(ctx, projectID, caller.ID)
	if err != nil {
		record.Reason = reasonLookupFailed
		return v.deny(ctx, record, apierr.Internal(msgAccessCheckFailure, err))
	}
	if row == nil || !row.Live() {
		record.Reason = reasonNoGrant
		return v.deny(ctx, record, apierr.Forbidden(MsgNoAccess))
	}

	record.Role = audit.RolePartner
	record.Permission = row.Permission
	record.Reason = reasonNotOwner
	return v.deny(ctx, record, apierr.Forbidden(MsgOwnerOnly))
}

// Guard adapts RequireOwner to audit.OwnerGuard
func (v *Verifier) Guard() audit.OwnerGuard {
	return func(ctx context.Context, caller *models.User, projectID int64, operation string) error {
		_, err := v.RequireOwner(ctx, caller, projectID, operation)
		return err
	}
}

func (v *Verifier) grant(ctx context.Context, record audit.AccessDecision, decision *Decision) (*Decision, error) {
	record.Granted = true
	record.Role = Role(decision.Grant)
	record.Permission = Permission(decision.Grant)
	if err := v.write(ctx, record); err != nil {
		return nil, err
	}
	return decision, nil
}

func (v *Verifier) deny(ctx context.Context, record audit.AccessDecision, cause *apierr.Error) (*Decision, error) {
	if err := v.write(ctx, record); err != nil {
		return nil, err
	}
	return nil, cause
}

// write records the decision; a failed write fails the check
func (v *Verifier) write(ctx context.Context, record audit.AccessDecision) error {
	v.metrics.ObserveAccessDecision(record.Granted, record.Role, string(record.Required))

	if err := v.audit.Log(ctx, record.Entry()); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("project_id", record.ProjectID).
			Error("Failed to write access audit entry")
		return apierr.Internal(msgAccessCheckFailure, err)
	}
	return nil
}
