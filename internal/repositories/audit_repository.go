package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"taskflow/internal/models"
)

type AuditRepository interface {
	// CreateBatch stores all entries of one mutation together.
	CreateBatch(ctx context.Context, entries []models.AuditEntry) error
	ListByTask(ctx context.Context, taskID string) ([]models.AuditEntry, error)
}

type auditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) CreateBatch(ctx context.Context, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO task_audit_entries (id, task_id, field, old_value, new_value, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, q,
			e.ID, e.TaskID, e.Field, e.OldValue, e.NewValue, e.ActorID, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert audit entry %s: %w", e.Field, err)
		}
	}
	return tx.Commit()
}

func (r *auditRepository) ListByTask(ctx context.Context, taskID string) ([]models.AuditEntry, error) {
	const q = `
		SELECT id, task_id, field, old_value, new_value, actor_id, created_at
		FROM task_audit_entries
		WHERE task_id = $1
		ORDER BY created_at ASC, field ASC`
	rows, err := r.db.QueryContext(ctx, q, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			e        models.AuditEntry
			oldValue sql.NullString
			newValue sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Field, &oldValue, &newValue, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.OldValue = nullString(oldValue)
		e.NewValue = nullString(newValue)
		out = append(out, e)
	}
	return out, rows.Err()
}
