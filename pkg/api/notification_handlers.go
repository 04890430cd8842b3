package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/notifications"
)

// NotificationService is implemented by notifications.Service
type NotificationService interface {
	List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) (*notifications.Page, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Unsubscribe(ctx context.Context, token string) error
}

// NotificationHandlers handles in-app notification requests
type NotificationHandlers struct {
	service NotificationService
}

// NewNotificationHandlers creates a new NotificationHandlers
func NewNotificationHandlers(service NotificationService) *NotificationHandlers {
	return &NotificationHandlers{service: service}
}

// RegisterPublicRoutes registers the email opt-out link target
func (h *NotificationHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/notifications/unsubscribe", h.Unsubscribe).Methods("POST")
}

// RegisterRoutes registers notification routes
func (h *NotificationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	router.HandleFunc("/notifications/read-all", h.MarkAllRead).Methods("POST")
	router.HandleFunc("/notifications/{notification_id}/read", h.MarkRead).Methods("POST")
}

// ListNotifications returns a page of the caller's notifications, newest first
func (h *NotificationHandlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	unread, err := httputil.QueryBool(r, "unread", false)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	result, err := h.service.List(r.Context(), user.ID, unread, page.Limit, page.Offset)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

// MarkRead marks one notification read
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "notification_id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	if err := h.service.MarkRead(r.Context(), user.ID, id); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// MarkAllRead marks every notification read
func (h *NotificationHandlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.service.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, map[string]int64{"marked": n})
}

// Unsubscribe turns off email for the owner of the token
func (h *NotificationHandlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := httputil.DecodeAndValidate(r, &body); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if err := h.service.Unsubscribe(r.Context(), body.Token); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
