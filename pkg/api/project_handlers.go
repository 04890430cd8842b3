package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/projects"
)

// ProjectService is implemented by projects.Service
type ProjectService interface {
	Create(ctx context.Context, caller *models.User, input projects.CreateInput) (*projects.View, error)
	Get(ctx context.Context, caller *models.User, projectID int64) (*projects.View, error)
	List(ctx context.Context, caller *models.User) ([]*projects.View, error)
	Update(ctx context.Context, caller *models.User, projectID int64, input projects.UpdateInput) (*projects.View, error)
	SetStatus(ctx context.Context, caller *models.User, projectID int64, status models.ProjectStatus) (*projects.View, error)
	Delete(ctx context.Context, caller *models.User, projectID int64) error
}

// ProjectHandlers handles project HTTP requests
type ProjectHandlers struct {
	service ProjectService
}

// NewProjectHandlers creates a new ProjectHandlers
func NewProjectHandlers(service ProjectService) *ProjectHandlers {
	return &ProjectHandlers{service: service}
}

// RegisterRoutes registers project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects", h.CreateProject).Methods("POST")
	router.HandleFunc("/projects", h.ListProjects).Methods("GET")
	router.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")
	router.HandleFunc("/projects/{id}", h.UpdateProject).Methods("PUT")
	router.HandleFunc("/projects/{id}", h.DeleteProject).Methods("DELETE")
	router.HandleFunc("/projects/{id}/status", h.SetProjectStatus).Methods("PUT")
}

// CreateProject creates a project owned by the caller
func (h *ProjectHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input projects.CreateInput
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.Create(r.Context(), user, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, view)
}

// ListProjects lists the projects visible to the caller
func (h *ProjectHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	views, err := h.service.List(r.Context(), user)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, views)
}

// GetProject returns one project
func (h *ProjectHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

// UpdateProject applies a partial update
func (h *ProjectHandlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	var input projects.UpdateInput
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.Update(r.Context(), user, id, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

// SetProjectStatus moves the project to another lifecycle status
func (h *ProjectHandlers) SetProjectStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	var input projects.StatusInput
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.SetStatus(r.Context(), user, id, input.Status)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

// DeleteProject soft-deletes the project
func (h *ProjectHandlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
