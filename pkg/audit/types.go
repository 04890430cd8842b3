package audit

import (
	"time"

	"github.com/platinummonkey/groundwork/pkg/models"
)

// Action names the operation an entry records
type Action string

const (
	// Access decisions
	ActionAccessCheck  Action = "access.check"
	ActionRequireOwner Action = "access.require_owner"

	// Project mutations
	ActionProjectCreate Action = "project.create"
	ActionProjectUpdate Action = "project.update"
	ActionProjectStatus Action = "project.status"
	ActionProjectDelete Action = "project.delete"

	// Invitation lifecycle
	ActionInvitationSend   Action = "invitation.send"
	ActionInvitationResend Action = "invitation.resend"
	ActionInvitationAccept Action = "invitation.accept"
	ActionInvitationCancel Action = "invitation.cancel"
	ActionAccessRevoke     Action = "access.revoke"

	// Project content
	ActionCostCreate        Action = "cost.create"
	ActionCostUpdate        Action = "cost.update"
	ActionCostDelete        Action = "cost.delete"
	ActionContactCreate     Action = "contact.create"
	ActionContactUpdate     Action = "contact.update"
	ActionContactDelete     Action = "contact.delete"
	ActionContactRate       Action = "contact.rate"
	ActionDocumentUpload    Action = "document.upload"
	ActionDocumentDelete    Action = "document.delete"
	ActionEventCreate       Action = "event.create"
	ActionEventUpdate       Action = "event.update"
	ActionEventComplete     Action = "event.complete"
	ActionEventDelete       Action = "event.delete"
	ActionReportGenerate    Action = "report.generate"
	ActionSecurityLogRead   Action = "security_log.read"
	ActionSecurityLogExport Action = "security_log.export"
)

// EntityType names the kind of record an entry refers to
type EntityType string

const (
	EntityProject       EntityType = "project"
	EntityProjectAccess EntityType = "project_access"
	EntityCostItem      EntityType = "cost_item"
	EntityContact       EntityType = "contact"
	EntityDocument      EntityType = "document"
	EntityEvent         EntityType = "event"
	EntityReport        EntityType = "report"
)

// Entry is one immutable audit record
type Entry struct {
	ID         int64                  `json:"id"`
	UserID     *int64                 `json:"user_id,omitempty"`
	Action     Action                 `json:"action"`
	EntityType EntityType             `json:"entity_type"`
	EntityID   *int64                 `json:"entity_id,omitempty"`
	ProjectID  *int64                 `json:"project_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Outcome of an access decision
const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
)

// Role labels recorded with access decisions
const (
	RoleOwner   = "owner"
	RolePartner = "partner"
	RoleNone    = "none"
)

// AccessDecision describes one access check for the audit log
type AccessDecision struct {
	UserID    *int64
	ProjectID int64
	// Operation is the guarded action for owner-only checks
	Operation  string
	Required   models.Permission
	Granted    bool
	Role       string
	Permission models.Permission
	Reason     string
}

// Entry converts the decision to an audit entry
func (d AccessDecision) Entry() *Entry {
	action := ActionAccessCheck
	if d.Operation != "" {
		action = ActionRequireOwner
	}

	outcome := OutcomeDenied
	if d.Granted {
		outcome = OutcomeGranted
	}

	metadata := map[string]interface{}{
		"outcome":  outcome,
		"role":     d.Role,
		"required": string(d.Required),
		"reason":   d.Reason,
	}
	if d.Permission != "" {
		metadata["permission"] = string(d.Permission)
	}
	if d.Operation != "" {
		metadata["operation"] = d.Operation
	}

	projectID := d.ProjectID
	return &Entry{
		UserID:     d.UserID,
		Action:     action,
		EntityType: EntityProject,
		EntityID:   &projectID,
		ProjectID:  &projectID,
		Metadata:   metadata,
	}
}

// Mutation builds an entry for a successful change
func Mutation(userID int64, action Action, entityType EntityType, entityID, projectID int64, metadata map[string]interface{}) *Entry {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &Entry{
		UserID:     &userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		ProjectID:  &projectID,
		Metadata:   metadata,
	}
}

// AccessAttempt is an access decision joined with the caller's display info
type AccessAttempt struct {
	ID              int64     `json:"id"`
	UserID          *int64    `json:"user_id,omitempty"`
	UserEmail       string    `json:"user_email,omitempty"`
	UserDisplayName string    `json:"user_display_name,omitempty"`
	Action          Action    `json:"action"`
	Operation       string    `json:"operation,omitempty"`
	Outcome         string    `json:"outcome"`
	Role            string    `json:"role"`
	Permission      string    `json:"permission,omitempty"`
	Required        string    `json:"required"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}

// AccessAttemptPage is one page of access attempts with the overall count
type AccessAttemptPage struct {
	Attempts []AccessAttempt `json:"attempts"`
	Total    int64           `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// ExportFormat is the file format of an exported security log
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// ContentType returns the MIME type of the format
func (f ExportFormat) ContentType() string {
	if f == ExportFormatCSV {
		return "text/csv"
	}
	return "application/json"
}
