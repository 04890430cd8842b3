package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/validation"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Validate runs struct validation and converts failures to a BAD_REQUEST with field detail
func Validate(dest interface{}) error {
	return validation.Struct(dest)
}

// DecodeAndValidate decodes a JSON body into dest and validates it
func DecodeAndValidate(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return apierr.BadRequest("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.BadRequest("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.BadRequest(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return apierr.BadRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	return Validate(dest)
}

// PathInt64 extracts and parses an int64 path parameter
func PathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, apierr.BadRequest("missing path parameter: " + key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val <= 0 {
		return 0, apierr.BadRequest(fmt.Sprintf("invalid %s: %s", key, str))
	}
	return val, nil
}

// PathString extracts a non-empty string path parameter
func PathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", apierr.BadRequest("missing path parameter: " + key)
	}
	return str, nil
}

// QueryBool parses a boolean query parameter
func QueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, apierr.BadRequest(fmt.Sprintf("invalid boolean for %s: %s", key, str))
	}
	return val, nil
}

// Page is a limit/offset window
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePage reads limit and offset query parameters, clamping limit to MaxPageSize
func ParsePage(r *http.Request) (Page, error) {
	return ParsePageSized(r, DefaultPageSize, MaxPageSize)
}

// ParsePageSized is ParsePage with a caller-chosen default and maximum limit
func ParsePageSized(r *http.Request, defaultSize, maxSize int) (Page, error) {
	page := Page{Limit: defaultSize}
	q := r.URL.Query()

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return page, apierr.Validation(map[string]string{"limit": "must be a positive integer"})
		}
		page.Limit = min(n, maxSize)
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return page, apierr.Validation(map[string]string{"offset": "must be a non-negative integer"})
		}
		page.Offset = n
	}
	return page, nil
}
