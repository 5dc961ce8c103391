package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates every table the service reads or writes. Users, projects,
// members and template states are owned by other services and only read here.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id               UUID PRIMARY KEY,
    display_name     TEXT NOT NULL DEFAULT '',
    email            TEXT NOT NULL DEFAULT '',
    telegram_chat_id BIGINT,
    notify_telegram  BOOLEAN NOT NULL DEFAULT TRUE,
    notify_email     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS projects (
    id   UUID PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_members (
    project_id UUID NOT NULL REFERENCES projects(id),
    user_id    UUID NOT NULL REFERENCES users(id),
    role       TEXT NOT NULL,
    PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS project_template_states (
    project_id  UUID NOT NULL REFERENCES projects(id),
    name        TEXT NOT NULL,
    position    INT NOT NULL,
    is_terminal BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (project_id, position)
);

CREATE TABLE IF NOT EXISTS tasks (
    id             UUID PRIMARY KEY,
    title          TEXT NOT NULL,
    description    TEXT,
    status         TEXT NOT NULL,
    priority       TEXT NOT NULL,
    due_date       TIMESTAMPTZ,
    project_id     UUID NOT NULL REFERENCES projects(id),
    sprint_id      UUID,
    epic_id        UUID,
    parent_task_id UUID REFERENCES tasks(id),
    created_by_id  UUID NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL,
    deleted_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS tasks_project_live_idx ON tasks (project_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS tasks_parent_idx ON tasks (parent_task_id);

CREATE TABLE IF NOT EXISTS task_assignees (
    task_id  UUID NOT NULL REFERENCES tasks(id),
    user_id  UUID NOT NULL,
    position INT NOT NULL,
    PRIMARY KEY (task_id, user_id)
);

CREATE TABLE IF NOT EXISTS task_audit_entries (
    id         UUID PRIMARY KEY,
    task_id    UUID NOT NULL REFERENCES tasks(id),
    field      TEXT NOT NULL,
    old_value  TEXT,
    new_value  TEXT,
    actor_id   UUID NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS task_audit_entries_task_idx ON task_audit_entries (task_id, created_at);

CREATE TABLE IF NOT EXISTS notifications (
    id           UUID PRIMARY KEY,
    recipient_id UUID NOT NULL,
    kind         TEXT NOT NULL,
    task_id      UUID NOT NULL,
    project_id   UUID NOT NULL,
    message      TEXT NOT NULL,
    is_read      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_recipient_idx ON notifications (recipient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS telegram_links (
    id         UUID PRIMARY KEY,
    user_id    UUID NOT NULL REFERENCES users(id),
    code       TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMPTZ NOT NULL,
    used       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
