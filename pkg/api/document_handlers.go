package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/documents"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

const (
	// multipartOverhead is allowed on top of MaxUploadBytes for form framing
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

// DocumentService is implemented by documents.Service
type DocumentService interface {
	Upload(ctx context.Context, caller *models.User, projectID int64, up documents.Upload) (*documents.Document, error)
	List(ctx context.Context, caller *models.User, projectID int64) ([]*documents.Document, error)
	Open(ctx context.Context, caller *models.User, projectID, documentID int64) (*documents.Document, io.ReadCloser, error)
	Delete(ctx context.Context, caller *models.User, projectID, documentID int64) error
}

// DocumentHandlers handles document HTTP requests
type DocumentHandlers struct {
	service DocumentService
}

// NewDocumentHandlers creates a new DocumentHandlers
func NewDocumentHandlers(service DocumentService) *DocumentHandlers {
	return &DocumentHandlers{service: service}
}

// RegisterRoutes registers document routes
func (h *DocumentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{id}/documents", h.ListDocuments).Methods("GET")
	router.HandleFunc("/projects/{id}/documents", h.UploadDocument).Methods("POST")
	router.HandleFunc("/projects/{id}/documents/{document_id}", h.DeleteDocument).Methods("DELETE")
	router.HandleFunc("/projects/{id}/documents/{document_id}/content", h.DownloadDocument).Methods("GET")
}

// ListDocuments lists the project's documents
func (h *DocumentHandlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	docs, err := h.service.List(r.Context(), user, projectID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, docs)
}

// UploadDocument stores the "file" part of a multipart form. An optional "name"
// field overrides the client file name.
func (h *DocumentHandlers) UploadDocument(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, documents.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteAPIError(w, r, apierr.BadRequest(fmt.Sprintf("file exceeds the %d MiB limit", documents.MaxUploadBytes>>20)))
			return
		}
		httputil.WriteAPIError(w, r, apierr.BadRequest("invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteAPIError(w, r, apierr.Validation(map[string]string{"file": "is required"}))
		return
	}
	defer file.Close()

	up := documents.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}
	if name := r.FormValue("name"); name != "" {
		up.Name = name
	}

	doc, err := h.service.Upload(r.Context(), user, projectID, up)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, doc)
}

// DownloadDocument streams the stored file
func (h *DocumentHandlers) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	user, projectID, documentID, ok := childScope(w, r, "document_id")
	if !ok {
		return
	}
	doc, content, err := h.service.Open(r.Context(), user, projectID, documentID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		observability.FromContext(r.Context()).WithError(err).
			WithField("document_id", documentID).
			Warn("Document download interrupted")
	}
}

// DeleteDocument removes a document and its content
func (h *DocumentHandlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, projectID, documentID, ok := childScope(w, r, "document_id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), user, projectID, documentID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
