package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// accessActions are the actions listed in the security log
var accessActions = []string{string(ActionAccessCheck), string(ActionRequireOwner)}

// DBLogger writes audit entries to the audit_log table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Log appends an entry and fills in its ID and timestamp
func (l *DBLogger) Log(ctx context.Context, entry *Entry) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = l.db.QueryRowContext(ctx, `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, project_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`,
		entry.UserID, string(entry.Action), string(entry.EntityType),
		entry.EntityID, entry.ProjectID, metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListAccessAttempts returns access decisions on a project, newest first, with the
// total number of decisions for pagination
func (l *DBLogger) ListAccessAttempts(ctx context.Context, projectID int64, limit, offset int) (*AccessAttemptPage, error) {
	page := &AccessAttemptPage{Attempts: []AccessAttempt{}, Limit: limit, Offset: offset}

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_log WHERE project_id = $1 AND action = ANY($2)
	`, projectID, pq.Array(accessActions)).Scan(&page.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count access attempts: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, COALESCE(u.email, ''), COALESCE(u.display_name, ''),
			a.action, a.metadata, a.created_at
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.project_id = $1 AND a.action = ANY($2)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $3 OFFSET $4
	`, projectID, pq.Array(accessActions), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list access attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			attempt      AccessAttempt
			userID       sql.NullInt64
			metadataJSON []byte
		)
		if err := rows.Scan(&attempt.ID, &userID, &attempt.UserEmail, &attempt.UserDisplayName,
			&attempt.Action, &metadataJSON, &attempt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access attempt: %w", err)
		}
		if userID.Valid {
			attempt.UserID = &userID.Int64
		}

		var metadata map[string]string
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		attempt.Outcome = metadata["outcome"]
		attempt.Role = metadata["role"]
		attempt.Permission = metadata["permission"]
		attempt.Required = metadata["required"]
		attempt.Reason = metadata["reason"]
		attempt.Operation = metadata["operation"]

		page.Attempts = append(page.Attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access attempts: %w", err)
	}

	return page, nil
}
