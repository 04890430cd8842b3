package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/invitations"
	"github.com/platinummonkey/groundwork/pkg/middleware"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// InvitationService is implemented by invitations.Service
type InvitationService interface {
	Invite(ctx context.Context, caller *models.User, projectID int64, input invitations.InviteInput) (*invitations.InviteResult, error)
	Accept(ctx context.Context, caller *models.User, token string) (*invitations.AccessView, error)
	AutoAccept(ctx context.Context, caller *models.User, token string) (*invitations.AccessView, error)
	Revoke(ctx context.Context, caller *models.User, projectID, accessID int64) error
	Resend(ctx context.Context, caller *models.User, accessID int64) (*invitations.AccessView, error)
	Cancel(ctx context.Context, caller *models.User, accessID int64) error
	List(ctx context.Context, caller *models.User, projectID int64) ([]*invitations.AccessView, error)
	Peek(ctx context.Context, token string) (*invitations.Preview, error)
}

// tokenBody is a request carrying a single opaque token
type tokenBody struct {
	Token string `json:"token" validate:"required,max=128"`
}

// InvitationHandlers handles sharing HTTP requests
type InvitationHandlers struct {
	service InvitationService
	limiter middleware.Limiter
}

// NewInvitationHandlers creates a new InvitationHandlers. limiter may be nil.
func NewInvitationHandlers(service InvitationService, limiter middleware.Limiter) *InvitationHandlers {
	return &InvitationHandlers{service: service, limiter: limiter}
}

// RegisterPublicRoutes registers the invitation preview
func (h *InvitationHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/invitations/token/{token}", h.PeekInvitation).Methods("GET")
}

// RegisterRoutes registers invitation and access routes
func (h *InvitationHandlers) RegisterRoutes(router *mux.Router) {
	var invite http.Handler = http.HandlerFunc(h.Invite)
	if h.limiter != nil {
		invite = middleware.RateLimit(h.limiter)(invite)
	}
	router.Handle("/projects/{id}/invitations", invite).Methods("POST")
	router.HandleFunc("/projects/{id}/access", h.ListAccess).Methods("GET")
	router.HandleFunc("/projects/{id}/access/{access_id}", h.RevokeAccess).Methods("DELETE")

	router.HandleFunc("/invitations/accept", h.AutoAccept).Methods("POST")
	router.HandleFunc("/invitations/token/{token}/accept", h.AcceptInvitation).Methods("POST")
	router.HandleFunc("/invitations/{access_id}/resend", h.ResendInvitation).Methods("POST")
	router.HandleFunc("/invitations/{access_id}", h.CancelInvitation).Methods("DELETE")
}

// Invite invites an email address to the project
func (h *InvitationHandlers) Invite(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	var input invitations.InviteInput
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	result, err := h.service.Invite(r.Context(), user, projectID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if result.Status == invitations.StatusInvitationSent || result.Status == invitations.StatusReinviteSent {
		_ = httputil.WriteCreated(w, result)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

// ListAccess lists the project's partners and invitations
func (h *InvitationHandlers) ListAccess(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	views, err := h.service.List(r.Context(), user, projectID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, views)
}

// RevokeAccess removes a partner or invitation from the project
func (h *InvitationHandlers) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	user, projectID, accessID, ok := childScope(w, r, "access_id")
	if !ok {
		return
	}
	if err := h.service.Revoke(r.Context(), user, projectID, accessID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// PeekInvitation describes an invitation without accepting it
func (h *InvitationHandlers) PeekInvitation(w http.ResponseWriter, r *http.Request) {
	token, err := httputil.PathString(r, "token")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	preview, err := h.service.Peek(r.Context(), token)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, preview)
}

// AcceptInvitation accepts the invitation named in the path
func (h *InvitationHandlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	token, err := httputil.PathString(r, "token")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.Accept(r.Context(), user, token)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

// AutoAccept accepts a token carried through sign-in
func (h *InvitationHandlers) AutoAccept(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body tokenBody
	if err := httputil.DecodeAndValidate(r, &body); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.AutoAccept(r.Context(), user, body.Token)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

// ResendInvitation reissues an invitation with a fresh token
func (h *InvitationHandlers) ResendInvitation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	accessID, err := httputil.PathInt64(r, "access_id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.Resend(r.Context(), user, accessID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

// CancelInvitation withdraws a pending invitation
func (h *InvitationHandlers) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	accessID, err := httputil.PathInt64(r, "access_id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	if err := h.service.Cancel(r.Context(), user, accessID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
