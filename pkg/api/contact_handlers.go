package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/contacts"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// ContactService is implemented by contacts.Service
type ContactService interface {
	Add(ctx context.Context, caller *models.User, projectID int64, input contacts.Input) (*contacts.Contact, error)
	Update(ctx context.Context, caller *models.User, projectID, contactID int64, input contacts.Input) (*contacts.Contact, error)
	Delete(ctx context.Context, caller *models.User, projectID, contactID int64) error
	List(ctx context.Context, caller *models.User, projectID int64) ([]*contacts.Contact, error)
	Rate(ctx context.Context, caller *models.User, projectID, contactID int64, input contacts.RatingInput) (*contacts.Rating, error)
}

// ContactHandlers handles contact HTTP requests
type ContactHandlers struct {
	service ContactService
}

// NewContactHandlers creates a new ContactHandlers
func NewContactHandlers(service ContactService) *ContactHandlers {
	return &ContactHandlers{service: service}
}

// RegisterRoutes registers contact routes
func (h *ContactHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{id}/contacts", h.ListContacts).Methods("GET")
	router.HandleFunc("/projects/{id}/contacts", h.AddContact).Methods("POST")
	router.HandleFunc("/projects/{id}/contacts/{contact_id}", h.UpdateContact).Methods("PUT")
	router.HandleFunc("/projects/{id}/contacts/{contact_id}", h.DeleteContact).Methods("DELETE")
	router.HandleFunc("/projects/{id}/contacts/{contact_id}/ratings", h.RateContact).Methods("POST")
}

// ListContacts lists the project's contacts with their average rating
func (h *ContactHandlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	list, err := h.service.List(r.Context(), user, projectID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// AddContact adds a contact to the project
func (h *ContactHandlers) AddContact(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	var input contacts.Input
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	c, err := h.service.Add(r.Context(), user, projectID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, c)
}

// UpdateContact replaces a contact's details
func (h *ContactHandlers) UpdateContact(w http.ResponseWriter, r *http.Request) {
	user, projectID, contactID, ok := childScope(w, r, "contact_id")
	if !ok {
		return
	}
	var input contacts.Input
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	c, err := h.service.Update(r.Context(), user, projectID, contactID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, c)
}

// DeleteContact removes a contact
func (h *ContactHandlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	user, projectID, contactID, ok := childScope(w, r, "contact_id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), user, projectID, contactID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// RateContact records the caller's rating of a contact
func (h *ContactHandlers) RateContact(w http.ResponseWriter, r *http.Request) {
	user, projectID, contactID, ok := childScope(w, r, "contact_id")
	if !ok {
		return
	}
	var input contacts.RatingInput
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	rating, err := h.service.Rate(r.Context(), user, projectID, contactID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, rating)
}
