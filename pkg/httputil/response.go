// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Code    apierr.Code       `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 response with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteAPIError normalises err and renders it. Internal errors are logged with their
// cause and the client only sees a generic message.
func WriteAPIError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.From(err)

	body := ErrorBody{Code: apiErr.Code, Message: apiErr.Message, Fields: apiErr.Fields}
	if apiErr.Code == apierr.CodeInternal {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("Request failed")
		body.Message = "internal server error"
	}

	_ = WriteJSON(w, apiErr.Code.HTTPStatus(), body)
}

// WriteTooManyRequests writes a 429 response
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	_ = WriteJSON(w, http.StatusTooManyRequests, map[string]string{
		"code":    "RATE_LIMITED",
		"message": message,
	})
}
