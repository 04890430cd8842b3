package reports

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/groundwork/pkg/access/accesstest"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/blob"
	"github.com/platinummonkey/groundwork/pkg/contacts"
	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/events"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

type fakeSources struct {
	err error
}

func (f fakeSources) Totals(context.Context, int64) (map[costs.Category]costs.CategoryTotal, error) {
	return map[costs.Category]costs.CategoryTotal{
		costs.CategoryHard: {Category: costs.CategoryHard, TotalCents: 1_250_050, Count: 2},
	}, f.err
}

func (f fakeSources) List(context.Context, int64) ([]*costs.Item, error) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return []*costs.Item{
		{ID: 1, Category: costs.CategoryHard, Description: "Foundation pour", Vendor: "Gale Concrete", AmountCents: 1_000_000, IncurredOn: day},
		{ID: 2, Category: costs.CategoryHard, Description: "Rebar", AmountCents: 250_050, IncurredOn: day},
	}, nil
}

type contactSource struct{}

func (contactSource) List(context.Context, int64) ([]*contacts.Contact, error) {
	avg := 4.5
	return []*contacts.Contact{
		{ID: 1, Name: "Pat Surveyor", Company: "Lines LLC", AverageRating: &avg, RatingCount: 2},
		{ID: 2, Name: "Café Owner"},
	}, nil
}

type eventSource struct{}

func (eventSource) List(context.Context, int64, events.Filter) ([]*events.Event, error) {
	done := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return []*events.Event{
		{ID: 1, Title: "Kickoff", Kind: events.KindMeeting, ScheduledAt: done, CompletedAt: &done},
		{ID: 2, Title: "Framing inspection", Kind: events.KindInspection, ScheduledAt: done.AddDate(0, 2, 0)},
	}, nil
}

func newTestService(t *testing.T, src fakeSources) (*Service, blob.Store, *accesstest.Fixture, *observability.Metrics) {
	t.Helper()
	blobs, err := blob.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)
	f := accesstest.NewFixture()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := NewService(f.Verifier, src, contactSource{}, eventSource{}, blobs, f.Trail, metrics)
	svc.now = func() time.Time { return time.Date(2026, 4, 15, 9, 30, 0, 0, time.UTC) }
	return svc, blobs, f, metrics
}

func TestService_GeneratePDF(t *testing.T) {
	svc, blobs, f, metrics := newTestService(t, fakeSources{})
	ctx := context.Background()

	report, err := svc.Generate(ctx, f.Reader, f.Project.ID, FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(report.Content, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.Equal(t, "harbor-lofts-20260415.pdf", report.FileName)
	assert.Regexp(t, `^reports/10/[0-9a-f-]{36}\.pdf$`, report.BlobKey)
	assert.Equal(t, int64(len(report.Content)), report.SizeBytes)

	rc, err := blobs.Get(ctx, report.BlobKey)
	require.NoError(t, err)
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, report.Content, stored)

	last := f.Trail.Last()
	require.NotNil(t, last)
	assert.Equal(t, audit.ActionReportGenerate, last.Action)
	assert.Nil(t, last.EntityID)
	assert.Equal(t, report.ID, last.Metadata["report_id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsTotal.WithLabelValues("pdf", "success")))
}

func TestService_GenerateXLSX(t *testing.T) {
	svc, _, f, _ := newTestService(t, fakeSources{})

	report, err := svc.Generate(context.Background(), f.Owner, f.Project.ID, FormatXLSX)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(report.Content))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{sheetSummary, sheetCosts, sheetContacts, sheetEvents}, wb.GetSheetList())
	name, err := wb.GetCellValue(sheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Harbor Lofts", name)

	vendor, err := wb.GetCellValue(sheetCosts, "D2")
	require.NoError(t, err)
	assert.Equal(t, "Gale Concrete", vendor)

	rows, err := wb.GetRows(sheetEvents)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header plus two events")
}

func TestService_GenerateRejects(t *testing.T) {
	svc, _, f, metrics := newTestService(t, fakeSources{})
	ctx := context.Background()

	_, err := svc.Generate(ctx, f.Owner, f.Project.ID, Format("docx"))
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))

	_, err = svc.Generate(ctx, f.Outsider, f.Project.ID, FormatPDF)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	failing, _, f2, failMetrics := newTestService(t, fakeSources{err: errors.New("db down")})
	_, err = failing.Generate(ctx, f2.Owner, f2.Project.ID, FormatXLSX)
	assert.Equal(t, apierr.CodeInternal, apierr.CodeOf(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(failMetrics.ReportsTotal.WithLabelValues("xlsx", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ReportsTotal.WithLabelValues("pdf", "error")),
		"rejected before rendering")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("csv")
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))
}

