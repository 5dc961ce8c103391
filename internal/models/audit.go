package models

import "time"

// Audited task fields.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldDueDate     = "dueDate"
	FieldAssigneeID  = "assigneeId"
	FieldSprintID    = "sprintId"
	FieldEpicID      = "epicId"
	FieldAssigneeIDs = "assigneeIds"
)

// AuditEntry records one changed field of one mutation.
type AuditEntry struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"old_value"`
	NewValue  *string   `json:"new_value"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}
