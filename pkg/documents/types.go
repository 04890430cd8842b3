// Package documents stores project files. Metadata lives in Postgres and content
// in the blob store under documents/{project}/{uuid}{ext}.
package documents

import (
	"io"
	"time"
)

// MaxUploadBytes is the largest accepted document
const MaxUploadBytes = 25 << 20

// Document is the metadata of an uploaded file
type Document struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	BlobKey     string     `json:"-"`
	UploadedBy  int64      `json:"uploaded_by"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"-"`
}

// Upload is a file to store. ContentType is sniffed when empty.
type Upload struct {
	Name        string    `json:"name" validate:"notblank,max=255"`
	ContentType string    `json:"content_type" validate:"max=255"`
	Content     io.Reader `json:"-"`
}
