package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"taskflow/internal/models"
)

// TaskRepository reads live tasks and runs every write inside a transaction.
// Reads never return rows with deleted_at set.
type TaskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)

	// WithTx runs fn in one transaction. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(tx TaskTx) error) error
}

// TaskTx is the set of writes allowed inside WithTx.
type TaskTx interface {
	Insert(ctx context.Context, task *models.Task) error
	UpdateFields(ctx context.Context, task *models.Task) error
	// ReplaceAssignees deletes every assignment of the task and inserts
	// userIDs in order.
	ReplaceAssignees(ctx context.Context, taskID string, userIDs []string) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// SoftDeleteChildren marks direct subtasks only and returns how many.
	SoftDeleteChildren(ctx context.Context, parentID string, at time.Time) (int64, error)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date,
       t.project_id, t.sprint_id, t.epic_id, t.parent_task_id, t.created_by_id,
       COALESCE((SELECT array_agg(a.user_id::text ORDER BY a.position)
                 FROM task_assignees a WHERE a.task_id = t.id), '{}') AS assignee_ids,
       t.created_at, t.updated_at, t.deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*models.Task, error) {
	var (
		t           models.Task
		description sql.NullString
		sprintID    sql.NullString
		epicID      sql.NullString
		parentID    sql.NullString
		dueDate     sql.NullTime
		deletedAt   sql.NullTime
		assignees   []string
	)
	if err := s.Scan(
		&t.ID, &t.Title, &description, &t.Status, &t.Priority, &dueDate,
		&t.ProjectID, &sprintID, &epicID, &parentID, &t.CreatedByID,
		pq.Array(&assignees),
		&t.CreatedAt, &t.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}
	t.Description = nullString(description)
	t.SprintID = nullString(sprintID)
	t.EpicID = nullString(epicID)
	t.ParentTaskID = nullString(parentID)
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	if deletedAt.Valid {
		d := deletedAt.Time
		t.DeletedAt = &d
	}
	t.AssigneeIDs = assignees
	if t.AssigneeIDs == nil {
		t.AssigneeIDs = []string{}
	}
	return &t, nil
}

func (r *taskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1 AND t.deleted_at IS NULL`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	baseQuery := `SELECT ` + taskColumns + ` FROM tasks t`

	conditions := []string{"t.deleted_at IS NULL"}
	args := []any{}
	argID := 1

	if filter.ProjectID != "" {
		conditions = append(conditions, fmt.Sprintf("t.project_id = $%d", argID))
		args = append(args, filter.ProjectID)
		argID++
	}
	if filter.ParentTaskID != nil {
		conditions = append(conditions, fmt.Sprintf("t.parent_task_id = $%d", argID))
		args = append(args, *filter.ParentTaskID)
		argID++
	} else if filter.TopLevelOnly {
		conditions = append(conditions, "t.parent_task_id IS NULL")
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id AND a.user_id = $%d)", argID))
		args = append(args, *filter.AssigneeID)
		argID++
	}
	if filter.SprintID != nil {
		conditions = append(conditions, fmt.Sprintf("t.sprint_id = $%d", argID))
		args = append(args, *filter.SprintID)
		argID++
	}
	if filter.EpicID != nil {
		conditions = append(conditions, fmt.Sprintf("t.epic_id = $%d", argID))
		args = append(args, *filter.EpicID)
		argID++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", argID))
		args = append(args, *filter.Status)
	}

	baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	baseQuery += " ORDER BY t.created_at DESC"

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) WithTx(ctx context.Context, fn func(tx TaskTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&taskTx{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type taskTx struct {
	q queryer
}

func (x *taskTx) Insert(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (
			id, title, description, status, priority, due_date, project_id,
			sprint_id, epic_id, parent_task_id, created_by_id, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := x.q.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
		task.ProjectID, task.SprintID, task.EpicID, task.ParentTaskID, task.CreatedByID,
		task.CreatedAt, task.UpdatedAt,
	)
	return err
}

func (x *taskTx) UpdateFields(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks SET
			title=$1, description=$2, status=$3, priority=$4, due_date=$5,
			sprint_id=$6, epic_id=$7, updated_at=$8
		WHERE id=$9 AND deleted_at IS NULL`
	res, err := x.q.ExecContext(ctx, query,
		task.Title, task.Description, task.Status, task.Priority, task.DueDate,
		task.SprintID, task.EpicID, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (x *taskTx) ReplaceAssignees(ctx context.Context, taskID string, userIDs []string) error {
	if _, err := x.q.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("delete assignees: %w", err)
	}
	for i, userID := range userIDs {
		if _, err := x.q.ExecContext(ctx,
			`INSERT INTO task_assignees (task_id, user_id, position) VALUES ($1,$2,$3)`,
			taskID, userID, i,
		); err != nil {
			return fmt.Errorf("insert assignee %s: %w", userID, err)
		}
	}
	return nil
}

func (x *taskTx) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := x.q.ExecContext(ctx,
		`UPDATE tasks SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (x *taskTx) SoftDeleteChildren(ctx context.Context, parentID string, at time.Time) (int64, error) {
	res, err := x.q.ExecContext(ctx,
		`UPDATE tasks SET deleted_at=$1, updated_at=$1 WHERE parent_task_id=$2 AND deleted_at IS NULL`, at, parentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
