package audit

import (
	"context"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// MaxExportRows caps the number of attempts in one export
const MaxExportRows = 10000

const exportPageSize = 500

// AttemptStore reads access decisions
type AttemptStore interface {
	ListAccessAttempts(ctx context.Context, projectID int64, limit, offset int) (*AccessAttemptPage, error)
}

// OwnerGuard fails unless caller owns the project. The guard audits its own decision.
type OwnerGuard func(ctx context.Context, caller *models.User, projectID int64, operation string) error

// SecurityLog exposes a project's access decisions to its owner
type SecurityLog struct {
	store AttemptStore
	guard OwnerGuard
}

// NewSecurityLog creates the owner-only security log reader
func NewSecurityLog(store AttemptStore, guard OwnerGuard) *SecurityLog {
	return &SecurityLog{store: store, guard: guard}
}

// ListAccessAttempts returns one page of the project's access decisions
func (s *SecurityLog) ListAccessAttempts(ctx context.Context, caller *models.User, projectID int64, limit, offset int) (*AccessAttemptPage, error) {
	if err := s.guard(ctx, caller, projectID, string(ActionSecurityLogRead)); err != nil {
		return nil, err
	}
	page, err := s.store.ListAccessAttempts(ctx, projectID, limit, offset)
	if err != nil {
		return nil, apierr.Internal("failed to list access attempts", err)
	}
	return page, nil
}

// Export renders the project's access decisions, newest first, as JSON or CSV
func (s *SecurityLog) Export(ctx context.Context, caller *models.User, projectID int64, format ExportFormat) ([]byte, error) {
	if err := s.guard(ctx, caller, projectID, string(ActionSecurityLogExport)); err != nil {
		return nil, err
	}
	if format != ExportFormatJSON && format != ExportFormatCSV {
		return nil, apierr.Validation(map[string]string{"format": "must be one of: json csv"})
	}

	var attempts []AccessAttempt
	for offset := 0; offset < MaxExportRows; offset += exportPageSize {
		page, err := s.store.ListAccessAttempts(ctx, projectID, exportPageSize, offset)
		if err != nil {
			return nil, apierr.Internal("failed to export access attempts", err)
		}
		attempts = append(attempts, page.Attempts...)
		if len(page.Attempts) < exportPageSize {
			break
		}
	}
	if attempts == nil {
		attempts = []AccessAttempt{}
	}

	var (
		data []byte
		err  error
	)
	if format == ExportFormatCSV {
		data, err = exportCSV(attempts)
	} else {
		data, err = exportJSON(attempts)
	}
	if err != nil {
		return nil, apierr.Internal("failed to render export", err)
	}
	return data, nil
}
