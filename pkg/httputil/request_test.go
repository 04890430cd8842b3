package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/apierr"
)

type inviteBody struct {
	Email      string `json:"email" validate:"required,email"`
	Permission string `json:"permission" validate:"required,oneof=read write"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   apierr.Code
		wantFields []string
	}{
		{name: "valid", body: `{"email":"a@example.com","permission":"read"}`},
		{name: "empty body", body: ``, wantCode: apierr.CodeBadRequest},
		{name: "malformed", body: `{nope}`, wantCode: apierr.CodeBadRequest},
		{name: "unknown field", body: `{"email":"a@example.com","permission":"read","admin":true}`, wantCode: apierr.CodeBadRequest},
		{name: "field errors", body: `{"email":"not-an-email","permission":"owner"}`, wantCode: apierr.CodeBadRequest, wantFields: []string{"email", "permission"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest inviteBody
			err := DecodeAndValidate(r, &dest)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@example.com", dest.Email)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apierr.CodeOf(err))
			for _, f := range tt.wantFields {
				assert.Contains(t, apierr.From(err).Fields, f)
			}
		})
	}
}

func TestPathInt64(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"abc", 0, true},
		{"-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tt.value})
			got, err := PathInt64(r, "id")
			if tt.wantErr {
				assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PathInt64(httptest.NewRequest(http.MethodGet, "/", nil), "id")
	assert.Error(t, err)
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, Page{Limit: DefaultPageSize}, page)

	page, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?limit=1000&offset=20", nil))
	require.NoError(t, err)
	assert.Equal(t, Page{Limit: MaxPageSize, Offset: 20}, page)

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?limit=0", nil))
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?offset=-5", nil))
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))
}

func TestParsePageSized(t *testing.T) {
	page, err := ParsePageSized(httptest.NewRequest(http.MethodGet, "/", nil), 20, 100)
	require.NoError(t, err)
	assert.Equal(t, Page{Limit: 20}, page)

	page, err = ParsePageSized(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)

	_, err = ParsePageSized(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), 20, 100)
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))
	assert.Contains(t, apierr.From(err).Fields, "limit")
}

func TestQueryBool(t *testing.T) {
	v, err := QueryBool(httptest.NewRequest(http.MethodGet, "/?upcoming=true", nil), "upcoming", false)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = QueryBool(httptest.NewRequest(http.MethodGet, "/?upcoming=maybe", nil), "upcoming", false)
	assert.Error(t, err)
}
