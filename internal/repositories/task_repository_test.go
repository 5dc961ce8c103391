package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"taskflow/internal/models"
)

const (
	repoTask    = "bbbbbbbb-0000-0000-0000-000000000042"
	repoProject = "aaaaaaaa-0000-0000-0000-000000000001"
	repoUser    = "00000000-0000-0000-0000-000000000001"
)

var taskRowColumns = []string{
	"id", "title", "description", "status", "priority", "due_date",
	"project_id", "sprint_id", "epic_id", "parent_task_id", "created_by_id",
	"assignee_ids", "created_at", "updated_at", "deleted_at",
}

func newMockRepo(t *testing.T) (TaskRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewTaskRepository(db), mock
}

func liveTaskRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(taskRowColumns).AddRow(
		repoTask, "Write report", nil, "COMPLETED", "HIGH", nil,
		repoProject, nil, nil, nil, repoUser,
		"{"+repoUser+"}", now, now, nil,
	)
}

func TestFindByIDSkipsDeletedRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FROM tasks t WHERE t\.id = \$1 AND t\.deleted_at IS NULL$`).
		WithArgs(repoTask).
		WillReturnRows(liveTaskRow(now))

	task, err := repo.FindByID(context.Background(), repoTask)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if task.Status != "COMPLETED" || task.Priority != models.PriorityHigh || task.Description != nil {
		t.Errorf("unexpected task %+v", task)
	}
	if len(task.AssigneeIDs) != 1 || task.AssigneeIDs[0] != repoUser {
		t.Errorf("assignees = %v", task.AssigneeIDs)
	}
}

func TestFindByIDMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`t\.deleted_at IS NULL`).
		WithArgs(repoTask).
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	if _, err := repo.FindByID(context.Background(), repoTask); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFindAllFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	status := "COMPLETED"

	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM tasks t WHERE t.deleted_at IS NULL AND t.project_id = $1 AND t.parent_task_id IS NULL AND t.status = $2 ORDER BY t.created_at DESC`)).
		WithArgs(repoProject, status).
		WillReturnRows(liveTaskRow(time.Now()))

	tasks, err := repo.FindAll(context.Background(), models.TaskFilter{
		ProjectID:    repoProject,
		TopLevelOnly: true,
		Status:       &status,
	})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != repoTask {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestFindAllEmptyIsNotNil(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`WHERE t\.deleted_at IS NULL ORDER BY`).
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	tasks, err := repo.FindAll(context.Background(), models.TaskFilter{})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("tasks = %#v", tasks)
	}
}

func TestSoftDeleteCascadesOneLevel(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE tasks SET deleted_at=$1, updated_at=$1 WHERE parent_task_id=$2 AND deleted_at IS NULL`)).
		WithArgs(at, repoTask).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE tasks SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`)).
		WithArgs(at, repoTask).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var children int64
	err := repo.WithTx(context.Background(), func(tx TaskTx) error {
		n, err := tx.SoftDeleteChildren(context.Background(), repoTask, at)
		if err != nil {
			return err
		}
		children = n
		return tx.SoftDelete(context.Background(), repoTask, at)
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if children != 2 {
		t.Errorf("children = %d, want 2", children)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE tasks SET .* WHERE id=\$9 AND deleted_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(tx TaskTx) error {
		return tx.UpdateFields(context.Background(), &models.Task{
			ID: repoTask, Title: "x", Status: "PENDING", Priority: models.PriorityLow, UpdatedAt: now,
		})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceAssigneesKeepsOrder(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM task_assignees WHERE task_id = $1`)).
		WithArgs(repoTask).
		WillReturnResult(sqlmock.NewResult(0, 3))
	for i, u := range []string{"u2", "u1"} {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO task_assignees (task_id, user_id, position) VALUES ($1,$2,$3)`)).
			WithArgs(repoTask, u, i).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.WithTx(context.Background(), func(tx TaskTx) error {
		return tx.ReplaceAssignees(context.Background(), repoTask, []string{"u2", "u1"})
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
}
