// internal/models/task.go
package models

import "time"

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task represents a task or, when ParentTaskID is set, a subtask.
//
// AssigneeIDs is the only writable assignee representation. The deprecated
// single assignee is exposed through LegacyAssigneeID.
type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description"`
	Status       string       `json:"status"`
	Priority     TaskPriority `json:"priority"`
	DueDate      *time.Time   `json:"due_date"`
	ProjectID    string       `json:"project_id"`
	SprintID     *string      `json:"sprint_id"`
	EpicID       *string      `json:"epic_id"`
	ParentTaskID *string      `json:"parent_task_id"`
	CreatedByID  string       `json:"created_by_id"`
	AssigneeIDs  []string     `json:"assignee_ids"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	DeletedAt    *time.Time   `json:"-"`
}

// LegacyAssigneeID returns the first assignee by insertion order, or nil.
func (t *Task) LegacyAssigneeID() *string {
	if t == nil || len(t.AssigneeIDs) == 0 {
		return nil
	}
	id := t.AssigneeIDs[0]
	return &id
}

func (t *Task) IsSubtask() bool { return t.ParentTaskID != nil }

func (t *Task) IsDeleted() bool { return t.DeletedAt != nil }

// Clone returns a deep copy so that before/after snapshots never share memory.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Description = cloneString(t.Description)
	c.SprintID = cloneString(t.SprintID)
	c.EpicID = cloneString(t.EpicID)
	c.ParentTaskID = cloneString(t.ParentTaskID)
	c.DueDate = cloneTime(t.DueDate)
	c.DeletedAt = cloneTime(t.DeletedAt)
	c.AssigneeIDs = append([]string(nil), t.AssigneeIDs...)
	return &c
}

// TaskPatch is a partial update. A nil field is left untouched; for the
// nullable fields an empty string clears the value.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *TaskPriority
	DueDate     *string
	SprintID    *string
	EpicID      *string

	// AssigneeIDs nil means "not supplied"; a non-nil empty slice clears.
	AssigneeIDs *[]string
	// AssigneeID is the deprecated single-assignee input, used only when
	// AssigneeIDs is nil. "" clears.
	AssigneeID *string
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	ProjectID    string
	ParentTaskID *string
	TopLevelOnly bool
	AssigneeID   *string
	SprintID     *string
	EpicID       *string
	Status       *string
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
