package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/analytics"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/reports"
	"github.com/platinummonkey/groundwork/pkg/search"
)

// PortfolioService is implemented by analytics.Service
type PortfolioService interface {
	Summary(ctx context.Context, caller *models.User) (*analytics.Summary, error)
}

// SearchService is implemented by search.Service
type SearchService interface {
	Search(ctx context.Context, caller *models.User, req search.Request) (*search.Response, error)
}

// ReportService is implemented by reports.Service
type ReportService interface {
	Generate(ctx context.Context, caller *models.User, projectID int64, format reports.Format) (*reports.Report, error)
}

type reportBody struct {
	Format string `json:"format" validate:"required"`
}

// PortfolioHandlers serves cross-project views: the summary, search and reports
type PortfolioHandlers struct {
	portfolio PortfolioService
	search    SearchService
	reports   ReportService
}

// NewPortfolioHandlers creates a new PortfolioHandlers. Nil services leave their
// routes unregistered.
func NewPortfolioHandlers(portfolio PortfolioService, searcher SearchService, reporter ReportService) *PortfolioHandlers {
	return &PortfolioHandlers{portfolio: portfolio, search: searcher, reports: reporter}
}

// RegisterRoutes registers portfolio routes
func (h *PortfolioHandlers) RegisterRoutes(router *mux.Router) {
	if h.portfolio != nil {
		router.HandleFunc("/portfolio/summary", h.Summary).Methods("GET")
	}
	if h.search != nil {
		router.HandleFunc("/search", h.Search).Methods("GET")
	}
	if h.reports != nil {
		router.HandleFunc("/projects/{id}/reports", h.GenerateReport).Methods("POST")
	}
}

// Summary returns the caller's portfolio dashboard
func (h *PortfolioHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	summary, err := h.portfolio.Summary(r.Context(), user)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, summary)
}

// Search runs a full-text query over everything the caller can see.
// ?q accepts type: and project: filters; ?limit and ?offset page the results.
func (h *PortfolioHandlers) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, err := httputil.ParsePageSized(r, search.DefaultLimit, search.MaxLimit)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	req := search.Request{Query: r.URL.Query().Get("q"), Limit: page.Limit, Offset: page.Offset}

	resp, err := h.search.Search(r.Context(), user, req)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, resp)
}

// GenerateReport renders the project as PDF or XLSX and returns the file
func (h *PortfolioHandlers) GenerateReport(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}
	var body reportBody
	if err := httputil.DecodeAndValidate(r, &body); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	format, err := reports.ParseFormat(body.Format)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	report, err := h.reports.Generate(r.Context(), user, projectID, format)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(report.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.Header().Set("X-Report-ID", report.ID)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(report.Content)
}
