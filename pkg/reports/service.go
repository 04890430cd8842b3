package reports

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/blob"
	"github.com/platinummonkey/groundwork/pkg/contacts"
	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/events"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// Verifier makes access decisions
type Verifier interface {
	Verify(ctx context.Context, caller *models.User, projectID int64, required models.Permission) (*access.Decision, error)
}

// CostSource reads cost lines and totals
type CostSource interface {
	List(ctx context.Context, projectID int64) ([]*costs.Item, error)
	Totals(ctx context.Context, projectID int64) (map[costs.Category]costs.CategoryTotal, error)
}

// ContactSource reads contacts
type ContactSource interface {
	List(ctx context.Context, projectID int64) ([]*contacts.Contact, error)
}

// EventSource reads the timeline
type EventSource interface {
	List(ctx context.Context, projectID int64, filter events.Filter) ([]*events.Event, error)
}

// Service generates reports
type Service struct {
	verifier  Verifier
	costs     CostSource
	contacts  ContactSource
	events    EventSource
	blobs     blob.Store
	audit     audit.Logger
	metrics   *observability.Metrics
	renderers map[Format]Renderer
	now       func() time.Time
}

// NewService creates the report service. metrics may be nil.
func NewService(verifier Verifier, costSrc CostSource, contactSrc ContactSource, eventSrc EventSource,
	blobs blob.Store, auditLog audit.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		verifier: verifier,
		costs:    costSrc,
		contacts: contactSrc,
		events:   eventSrc,
		blobs:    blobs,
		audit:    auditLog,
		metrics:  metrics,
		renderers: map[Format]Renderer{
			FormatPDF:  PDFRenderer{},
			FormatXLSX: XLSXRenderer{},
		},
		now: time.Now,
	}
}

// ParseFormat accepts pdf or xlsx in any case
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f != FormatPDF && f != FormatXLSX {
		return "", apierr.Validation(map[string]string{"format": "must be one of: pdf xlsx"})
	}
	return f, nil
}

// Generate renders the project, stores the file and returns it. Requires read
// access.
func (s *Service) Generate(ctx context.Context, caller *models.User, projectID int64, format Format) (report *Report, err error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, apierr.Validation(map[string]string{"format": "must be one of: pdf xlsx"})
	}
	decision, err := s.verifier.Verify(ctx, caller, projectID, models.PermissionRead)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "Reports.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int64("project.id", projectID), attribute.String("report.format", string(format)))

	started := time.Now()
	defer func() {
		s.metrics.ObserveReport(string(format), started, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "report generation failed")
		}
	}()

	data, err := s.gather(ctx, decision.Project)
	if err != nil {
		return nil, apierr.Internal("failed to load report data", err)
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, data); err != nil {
		return nil, apierr.Internal("failed to render report", err)
	}

	id := uuid.NewString()
	report = &Report{
		ID:          id,
		ProjectID:   projectID,
		Format:      format,
		FileName:    fileName(decision.Project, data.GeneratedAt, format),
		ContentType: renderer.ContentType(),
		SizeBytes:   int64(buf.Len()),
		BlobKey:     fmt.Sprintf("reports/%d/%s.%s", projectID, id, format),
		GeneratedBy: caller.ID,
		GeneratedAt: data.GeneratedAt,
		Content:     buf.Bytes(),
	}
	if err := s.blobs.Put(ctx, report.BlobKey, bytes.NewReader(report.Content), report.ContentType); err != nil {
		return nil, apierr.Internal("failed to store report", err)
	}

	entry := audit.Mutation(caller.ID, audit.ActionReportGenerate, audit.EntityReport, 0, projectID, map[string]interface{}{
		"report_id":  report.ID,
		"format":     format,
		"blob_key":   report.BlobKey,
		"size_bytes": report.SizeBytes,
	})
	entry.EntityID = nil
	if err := s.audit.Log(ctx, entry); err != nil {
		return nil, apierr.Internal("failed to write audit entry", err)
	}
	return report, nil
}

// gather loads the sections concurrently
func (s *Service) gather(ctx context.Context, p *models.Project) (*Data, error) {
	data := &Data{Project: p, GeneratedAt: s.now().UTC()}
	var totals map[costs.Category]costs.CategoryTotal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.costs.Totals(gctx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		data.Costs, err = s.costs.List(gctx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		data.Contacts, err = s.contacts.List(gctx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		data.Events, err = s.events.List(gctx, p.ID, events.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	data.Breakdown = costs.NewBreakdown(p.ID, p.BudgetCents, totals)
	return data, nil
}

func fileName(p *models.Project, at time.Time, format Format) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, p.Name)
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = fmt.Sprintf("project-%d", p.ID)
	}
	return fmt.Sprintf("%s-%s.%s", slug, at.Format("20060102"), format)
}
