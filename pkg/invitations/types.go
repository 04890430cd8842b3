package invitations

import (
	"time"

	"github.com/platinummonkey/groundwork/pkg/models"
)

// InviteStatus is the outcome of an invite call
type InviteStatus string

const (
	// StatusAlreadyPartner means the address already holds accepted access
	StatusAlreadyPartner InviteStatus = "already_partner"
	// StatusPendingInvitation means a live invitation is still waiting; nothing was sent
	StatusPendingInvitation InviteStatus = "pending_invitation"
	// StatusReinviteSent means an expired invitation was reissued with a new token
	StatusReinviteSent InviteStatus = "reinvite_sent"
	// StatusInvitationSent means a new invitation was created
	StatusInvitationSent InviteStatus = "invitation_sent"
)

// InviteInput is the body of an invite request
type InviteInput struct {
	Email      string            `json:"email" validate:"required,email,max=320"`
	Permission models.Permission `json:"permission" validate:"required,oneof=read write"`
}

// InviteResult reports what an invite call did
type InviteResult struct {
	Status     InviteStatus `json:"status"`
	Invitation *AccessView  `json:"invitation"`
}

// AccessView is a project_access row with its derived state. The token is never exposed.
type AccessView struct {
	*models.ProjectAccess
	State models.InvitationState `json:"state"`
}

func newView(a *models.ProjectAccess, now time.Time) *AccessView {
	return &AccessView{ProjectAccess: a, State: a.State(now)}
}

// Preview is what an invitee sees before signing in
type Preview struct {
	ProjectID    int64                  `json:"project_id"`
	ProjectName  string                 `json:"project_name"`
	InviterName  string                 `json:"inviter_name"`
	InvitedEmail string                 `json:"invited_email"`
	Permission   models.Permission      `json:"permission"`
	ExpiresAt    time.Time              `json:"expires_at"`
	State        models.InvitationState `json:"state"`
}

// Pending is an unaccepted invitation with the names needed to mail a reminder
type Pending struct {
	Access      *models.ProjectAccess
	ProjectName string
	InviterName string
}
