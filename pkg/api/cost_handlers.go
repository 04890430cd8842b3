package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// CostService is implemented by costs.Service
type CostService interface {
	Add(ctx context.Context, caller *models.User, projectID int64, input costs.Input) (*costs.Item, error)
	Update(ctx context.Context, caller *models.User, projectID, itemID int64, input costs.Input) (*costs.Item, error)
	Delete(ctx context.Context, caller *models.User, projectID, itemID int64) error
	List(ctx context.Context, caller *models.User, projectID int64) ([]*costs.Item, error)
	Breakdown(ctx context.Context, caller *models.User, projectID int64) (*costs.Breakdown, error)
}

// CostHandlers handles cost line HTTP requests
type CostHandlers struct {
	service CostService
}

// NewCostHandlers creates a new CostHandlers
func NewCostHandlers(service CostService) *CostHandlers {
	return &CostHandlers{service: service}
}

// RegisterRoutes registers cost routes
func (h *CostHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{id}/costs", h.ListCosts).Methods("GET")
	router.HandleFunc("/projects/{id}/costs", h.AddCost).Methods("POST")
	router.HandleFunc("/projects/{id}/costs/breakdown", h.Breakdown).Methods("GET")
	router.HandleFunc("/projects/{id}/costs/{cost_id}", h.UpdateCost).Methods("PUT")
	router.HandleFunc("/projects/{id}/costs/{cost_id}", h.DeleteCost).Methods("DELETE")
}

// ListCosts lists the project's cost lines
func (h *CostHandlers) ListCosts(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), user, projectID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, items)
}

// AddCost records a cost line
func (h *CostHandlers) AddCost(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	var input costs.Input
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	item, err := h.service.Add(r.Context(), user, projectID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, item)
}

// UpdateCost replaces a cost line
func (h *CostHandlers) UpdateCost(w http.ResponseWriter, r *http.Request) {
	user, projectID, itemID, ok := childScope(w, r, "cost_id")
	if !ok {
		return
	}
	var input costs.Input
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	item, err := h.service.Update(r.Context(), user, projectID, itemID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, item)
}

// DeleteCost removes a cost line
func (h *CostHandlers) DeleteCost(w http.ResponseWriter, r *http.Request) {
	user, projectID, itemID, ok := childScope(w, r, "cost_id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), user, projectID, itemID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Breakdown returns spend against budget by category
func (h *CostHandlers) Breakdown(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	breakdown, err := h.service.Breakdown(r.Context(), user, projectID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, breakdown)
}
