package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// SecurityLogService is implemented by audit.SecurityLog
type SecurityLogService interface {
	ListAccessAttempts(ctx context.Context, caller *models.User, projectID int64, limit, offset int) (*audit.AccessAttemptPage, error)
	Export(ctx context.Context, caller *models.User, projectID int64, format audit.ExportFormat) ([]byte, error)
}

// SecurityLogHandlers serves a project's access decisions to its owner
type SecurityLogHandlers struct {
	service SecurityLogService
	now     func() time.Time
}

// NewSecurityLogHandlers creates a new SecurityLogHandlers
func NewSecurityLogHandlers(service SecurityLogService) *SecurityLogHandlers {
	return &SecurityLogHandlers{service: service, now: time.Now}
}

// RegisterRoutes registers security log routes
func (h *SecurityLogHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{id}/access-attempts", h.ListAccessAttempts).Methods("GET")
	router.HandleFunc("/projects/{id}/access-attempts/export", h.ExportAccessAttempts).Methods("GET")
}

// ListAccessAttempts returns a page of access decisions, newest first
func (h *SecurityLogHandlers) ListAccessAttempts(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	result, err := h.service.ListAccessAttempts(r.Context(), user, projectID, page.Limit, page.Offset)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

// ExportAccessAttempts downloads the log as ?format=json (default) or csv
func (h *SecurityLogHandlers) ExportAccessAttempts(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	format := audit.ExportFormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		format = audit.ExportFormat(strings.ToLower(f))
	}

	data, err := h.service.Export(r.Context(), user, projectID, format)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	filename := fmt.Sprintf("access-attempts-%d-%s.%s", projectID, h.now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
