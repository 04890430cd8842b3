package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/events"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// EventService is implemented by events.Service
type EventService interface {
	Add(ctx context.Context, caller *models.User, projectID int64, input events.Input) (*events.Event, error)
	List(ctx context.Context, caller *models.User, projectID int64, filter events.Filter) ([]*events.Event, error)
	Update(ctx context.Context, caller *models.User, projectID, eventID int64, input events.Input) (*events.Event, error)
	Complete(ctx context.Context, caller *models.User, projectID, eventID int64) (*events.Event, error)
	Delete(ctx context.Context, caller *models.User, projectID, eventID int64) error
}

// EventHandlers handles timeline HTTP requests
type EventHandlers struct {
	service EventService
}

// NewEventHandlers creates a new EventHandlers
func NewEventHandlers(service EventService) *EventHandlers {
	return &EventHandlers{service: service}
}

// RegisterRoutes registers event routes
func (h *EventHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{id}/events", h.ListEvents).Methods("GET")
	router.HandleFunc("/projects/{id}/events", h.AddEvent).Methods("POST")
	router.HandleFunc("/projects/{id}/events/{event_id}", h.UpdateEvent).Methods("PUT")
	router.HandleFunc("/projects/{id}/events/{event_id}", h.DeleteEvent).Methods("DELETE")
	router.HandleFunc("/projects/{id}/events/{event_id}/complete", h.CompleteEvent).Methods("POST")
}

// ListEvents lists the timeline. ?upcoming=true keeps open future events and
// ?limit caps the result.
func (h *EventHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	filter, err := parseEventFilter(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	list, err := h.service.List(r.Context(), user, projectID, filter)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

func parseEventFilter(r *http.Request) (events.Filter, error) {
	var filter events.Filter
	upcoming, err := httputil.QueryBool(r, "upcoming", false)
	if err != nil {
		return filter, err
	}
	filter.Upcoming = upcoming

	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return filter, apierr.Validation(map[string]string{"limit": "must be a positive integer"})
		}
		filter.Limit = min(n, httputil.MaxPageSize)
	}
	return filter, nil
}

// AddEvent schedules an event
func (h *EventHandlers) AddEvent(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	var input events.Input
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	e, err := h.service.Add(r.Context(), user, projectID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, e)
}

// UpdateEvent replaces an event's details
func (h *EventHandlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	user, projectID, eventID, ok := childScope(w, r, "event_id")
	if !ok {
		return
	}
	var input events.Input
	if err := httputil.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	e, err := h.service.Update(r.Context(), user, projectID, eventID, input)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, e)
}

// CompleteEvent marks an event done
func (h *EventHandlers) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	user, projectID, eventID, ok := childScope(w, r, "event_id")
	if !ok {
		return
	}
	e, err := h.service.Complete(r.Context(), user, projectID, eventID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, e)
}

// DeleteEvent removes an event
func (h *EventHandlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	user, projectID, eventID, ok := childScope(w, r, "event_id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), user, projectID, eventID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
