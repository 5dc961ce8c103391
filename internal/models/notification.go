package models

import "time"

type NotificationKind string

const (
	NotificationAssigned  NotificationKind = "ASSIGNED"
	NotificationUpdated   NotificationKind = "UPDATED"
	NotificationCompleted NotificationKind = "COMPLETED"
)

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Kind        NotificationKind `json:"kind"`
	TaskID      string           `json:"task_id"`
	ProjectID   string           `json:"project_id"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}
