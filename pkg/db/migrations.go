package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema in application order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					subject TEXT NOT NULL UNIQUE,
					email TEXT NOT NULL UNIQUE,
					display_name TEXT NOT NULL DEFAULT '',
					role TEXT NOT NULL DEFAULT 'partner' CHECK (role IN ('admin', 'partner')),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create projects table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					address TEXT NOT NULL DEFAULT '',
					city TEXT NOT NULL DEFAULT '',
					owner_id BIGINT NOT NULL REFERENCES users(id),
					status TEXT NOT NULL DEFAULT 'planning'
						CHECK (status IN ('planning', 'active', 'on_hold', 'completed', 'archived')),
					budget_cents BIGINT NOT NULL DEFAULT 0 CHECK (budget_cents >= 0),
					start_date DATE,
					target_date DATE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ
				);

				CREATE INDEX idx_projects_owner ON projects(owner_id) WHERE deleted_at IS NULL;
				CREATE INDEX idx_projects_search ON projects
					USING GIN (to_tsvector('english', name || ' ' || description || ' ' || city));
			`,
		},
		{
			Version:     3,
			Description: "Create project_access table",
			SQL: `
				CREATE TABLE IF NOT EXISTS project_access (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id),
					user_id BIGINT REFERENCES users(id),
					invited_email TEXT NOT NULL,
					permission TEXT NOT NULL CHECK (permission IN ('read', 'write')),
					token TEXT UNIQUE,
					invited_by BIGINT NOT NULL REFERENCES users(id),
					invited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ NOT NULL,
					accepted_at TIMESTAMPTZ,
					deleted_at TIMESTAMPTZ,
					CHECK (accepted_at IS NULL OR user_id IS NOT NULL)
				);

				-- one live invitation or grant per project and address
				CREATE UNIQUE INDEX idx_project_access_live_email
					ON project_access(project_id, invited_email) WHERE deleted_at IS NULL;
				CREATE INDEX idx_project_access_user
					ON project_access(user_id, project_id) WHERE accepted_at IS NOT NULL AND deleted_at IS NULL;
			`,
		},
		{
			Version:     4,
			Description: "Create append-only audit_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_log (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT REFERENCES users(id),
					action TEXT NOT NULL,
					entity_type TEXT NOT NULL,
					entity_id BIGINT,
					project_id BIGINT,
					metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_log_project ON audit_log(project_id, created_at DESC);
				CREATE INDEX idx_audit_log_action ON audit_log(action);

				CREATE OR REPLACE FUNCTION audit_log_immutable() RETURNS trigger AS $$
				BEGIN
					RAISE EXCEPTION 'audit_log is append-only';
				END;
				$$ LANGUAGE plpgsql;

				CREATE TRIGGER audit_log_no_update_delete
					BEFORE UPDATE OR DELETE ON audit_log
					FOR EACH ROW EXECUTE FUNCTION audit_log_immutable();
			`,
		},
		{
			Version:     5,
			Description: "Create cost_items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS cost_items (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id),
					category TEXT NOT NULL CHECK (category IN ('land', 'hard', 'soft', 'financing', 'other')),
					description TEXT NOT NULL,
					vendor TEXT NOT NULL DEFAULT '',
					amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
					incurred_on DATE NOT NULL,
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_cost_items_project ON cost_items(project_id, incurred_on DESC);
			`,
		},
		{
			Version:     6,
			Description: "Create contacts and contact_ratings tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS contacts (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id),
					name TEXT NOT NULL,
					company TEXT NOT NULL DEFAULT '',
					role TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL DEFAULT '',
					phone TEXT NOT NULL DEFAULT '',
					notes TEXT NOT NULL DEFAULT '',
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_contacts_project ON contacts(project_id);
				CREATE INDEX idx_contacts_search ON contacts
					USING GIN (to_tsvector('english', name || ' ' || company || ' ' || role || ' ' || notes));

				CREATE TABLE IF NOT EXISTS contact_ratings (
					id BIGSERIAL PRIMARY KEY,
					contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id),
					score SMALLINT NOT NULL CHECK (score BETWEEN 1 AND 5),
					comment TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (contact_id, user_id)
				);
			`,
		},
		{
			Version:     7,
			Description: "Create documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS documents (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id),
					name TEXT NOT NULL,
					content_type TEXT NOT NULL,
					size_bytes BIGINT NOT NULL CHECK (size_bytes >= 0),
					blob_key TEXT NOT NULL UNIQUE,
					uploaded_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ
				);

				CREATE INDEX idx_documents_project ON documents(project_id) WHERE deleted_at IS NULL;
				CREATE INDEX idx_documents_search ON documents USING GIN (to_tsvector('english', name));
			`,
		},
		{
			Version:     8,
			Description: "Create events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS events (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id),
					title TEXT NOT NULL,
					kind TEXT NOT NULL CHECK (kind IN ('milestone', 'inspection', 'meeting', 'deadline', 'other')),
					scheduled_at TIMESTAMPTZ NOT NULL,
					completed_at TIMESTAMPTZ,
					notes TEXT NOT NULL DEFAULT '',
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_events_project_scheduled ON events(project_id, scheduled_at);
				CREATE INDEX idx_events_search ON events USING GIN (to_tsvector('english', title || ' ' || notes));
			`,
		},
		{
			Version:     9,
			Description: "Create notifications tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id),
					kind TEXT NOT NULL,
					title TEXT NOT NULL,
					body TEXT NOT NULL DEFAULT '',
					link TEXT NOT NULL DEFAULT '',
					read_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_notifications_user ON notifications(user_id, created_at DESC);

				CREATE TABLE IF NOT EXISTS notification_subscriptions (
					user_id BIGINT PRIMARY KEY REFERENCES users(id),
					email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
					unsubscribe_token TEXT NOT NULL UNIQUE,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS invitation_reminders (
					access_id BIGINT PRIMARY KEY REFERENCES project_access(id),
					sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     m.Version,
			"description": m.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		log.Info("Migration applied")
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
