package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/blob"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
	"github.com/platinummonkey/groundwork/pkg/validation"
)

// Verifier makes access decisions
type Verifier interface {
	Verify(ctx context.Context, caller *models.User, projectID int64, required models.Permission) (*access.Decision, error)
}

// Service manages documents
type Service struct {
	store    Store
	blobs    blob.Store
	verifier Verifier
	audit    audit.Logger
}

// NewService creates the document service
func NewService(store Store, blobs blob.Store, verifier Verifier, auditLog audit.Logger) *Service {
	return &Service{store: store, blobs: blobs, verifier: verifier, audit: auditLog}
}

// Upload stores a file. Requires write access.
func (s *Service) Upload(ctx context.Context, caller *models.User, projectID int64, up Upload) (*Document, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(up); err != nil {
		return nil, err
	}
	if up.Content == nil {
		return nil, apierr.BadRequest("file content is required")
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(up.Content, MaxUploadBytes+1))
	if err != nil {
		return nil, apierr.BadRequest("failed to read file content")
	}
	if n > MaxUploadBytes {
		return nil, apierr.BadRequest(fmt.Sprintf("file exceeds the %d MiB limit", MaxUploadBytes>>20))
	}

	name := strings.TrimSpace(path.Base(strings.ReplaceAll(up.Name, "\\", "/")))
	contentType := up.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(buf.Bytes())
	}

	doc := &Document{
		ProjectID:   projectID,
		Name:        name,
		ContentType: contentType,
		SizeBytes:   n,
		BlobKey:     fmt.Sprintf("documents/%d/%s%s", projectID, uuid.NewString(), strings.ToLower(path.Ext(name))),
		UploadedBy:  caller.ID,
	}
	if err := s.blobs.Put(ctx, doc.BlobKey, &buf, contentType); err != nil {
		return nil, apierr.Internal("failed to store document", err)
	}
	if err := s.store.Create(ctx, doc); err != nil {
		s.discard(ctx, doc.BlobKey)
		return nil, apierr.Internal("failed to create document", err)
	}

	err = s.record(ctx, caller, audit.ActionDocumentUpload, doc, map[string]interface{}{
		"name":       doc.Name,
		"size_bytes": doc.SizeBytes,
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns the project's documents. Requires read access.
func (s *Service) List(ctx context.Context, caller *models.User, projectID int64) ([]*Document, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("failed to list documents", err)
	}
	return docs, nil
}

// Open returns the document and a reader over its content. The caller closes the
// reader. Requires read access.
func (s *Service) Open(ctx context.Context, caller *models.User, projectID, documentID int64) (*Document, io.ReadCloser, error) {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead); err != nil {
		return nil, nil, err
	}
	doc, err := s.store.Get(ctx, projectID, documentID)
	if err != nil {
		return nil, nil, apierr.Internal("failed to get document", err)
	}
	if doc == nil {
		return nil, nil, apierr.NotFound("document")
	}

	content, err := s.blobs.Get(ctx, doc.BlobKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil, apierr.NotFound("document content")
	}
	if err != nil {
		return nil, nil, apierr.Internal("failed to read document", err)
	}
	return doc, content, nil
}

// Delete soft-deletes the metadata and then removes the content. A failed blob
// delete is logged and leaves an orphaned object. Requires write access.
func (s *Service) Delete(ctx context.Context, caller *models.User, projectID, documentID int64) error {
	if _, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionWrite); err != nil {
		return err
	}
	doc, err := s.store.SoftDelete(ctx, projectID, documentID)
	if err != nil {
		return apierr.Internal("failed to delete document", err)
	}
	if doc == nil {
		return apierr.NotFound("document")
	}
	s.discard(ctx, doc.BlobKey)
	return s.record(ctx, caller, audit.ActionDocumentDelete, doc, map[string]interface{}{"name": doc.Name})
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("blob_key", key).
			Warn("Failed to delete document content")
	}
}

func (s *Service) record(ctx context.Context, caller *models.User, action audit.Action, doc *Document, metadata map[string]interface{}) error {
	entry := audit.Mutation(caller.ID, action, audit.EntityDocument, doc.ID, doc.ProjectID, metadata)
	if err := s.audit.Log(ctx, entry); err != nil {
		return apierr.Internal("failed to write audit entry", err)
	}
	return nil
}
