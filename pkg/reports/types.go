// Package reports renders a project snapshot as PDF or Excel and keeps a copy in the
// blob store under reports/{project}/{uuid}.{ext}.
package reports

import (
	"io"
	"time"

	"github.com/platinummonkey/groundwork/pkg/contacts"
	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/events"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// Format is an output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Report describes a generated report. Content holds the rendered bytes.
type Report struct {
	ID          string    `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Format      Format    `json:"format"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	BlobKey     string    `json:"blob_key"`
	GeneratedBy int64     `json:"generated_by"`
	GeneratedAt time.Time `json:"generated_at"`
	Content     []byte    `json:"-"`
}

// Data is everything a report shows
type Data struct {
	Project     *models.Project
	GeneratedAt time.Time
	Breakdown   *costs.Breakdown
	Costs       []*costs.Item
	Contacts    []*contacts.Contact
	Events      []*events.Event
}

// Renderer writes Data in one format
type Renderer interface {
	Render(w io.Writer, d *Data) error
	ContentType() string
}
