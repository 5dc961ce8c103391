package services

import (
	"context"
	"log"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// Notifier is the delivery channel. Each call targets one recipient.
type Notifier interface {
	NotifyAssigned(ctx context.Context, taskID, recipientID, title, projectID string) error
	NotifyCompleted(ctx context.Context, recipientID, taskID, title, actorDisplayName, projectID string) error
	NotifyUpdated(ctx context.Context, taskID, recipientID, title, actorDisplayName, projectID string) error
}

type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
)

// MutationScope selects the notification rules. Subtask endpoints never fan
// out generic UPDATED notifications.
type MutationScope string

const (
	ScopeTask    MutationScope = "task"
	ScopeSubtask MutationScope = "subtask"
)

// MutationEvent is everything the dispatcher needs about one committed
// mutation.
type MutationEvent struct {
	Kind       MutationKind
	Scope      MutationScope
	Actor      models.Actor
	TaskID     string
	ProjectID  string
	Title      string
	CreatorID  string
	Assignees  []string
	Added      []string
	Transition Transition
}

// Delivery is one planned notification.
type Delivery struct {
	Kind        models.NotificationKind
	RecipientID string
}

// PlanNotifications applies the fan-out rules. The actor never notifies
// themselves and each rule yields at most one delivery per recipient.
func PlanNotifications(ev MutationEvent) []Delivery {
	var out []Delivery

	for _, id := range uniqueExcept(ev.Added, ev.Actor.UserID) {
		out = append(out, Delivery{Kind: models.NotificationAssigned, RecipientID: id})
	}

	if ev.Transition.EnteredTerminal {
		audience := append(append([]string{}, ev.Assignees...), ev.CreatorID)
		for _, id := range uniqueExcept(audience, ev.Actor.UserID) {
			out = append(out, Delivery{Kind: models.NotificationCompleted, RecipientID: id})
		}
	}

	if ev.Kind == MutationUpdate && ev.Scope == ScopeTask {
		for _, id := range uniqueExcept(ev.Assignees, ev.Actor.UserID) {
			out = append(out, Delivery{Kind: models.NotificationUpdated, RecipientID: id})
		}
	}
	return out
}

// NotificationDispatcher delivers planned notifications one recipient at a
// time. It does not deduplicate across calls.
type NotificationDispatcher struct {
	notifier Notifier
	users    repositories.UserRepository
}

func NewNotificationDispatcher(notifier Notifier, users repositories.UserRepository) *NotificationDispatcher {
	return &NotificationDispatcher{notifier: notifier, users: users}
}

// Dispatch returns the number of successful deliveries. Failures are logged
// and do not stop the remaining recipients.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, ev MutationEvent) int {
	deliveries := PlanNotifications(ev)
	if len(deliveries) == 0 {
		return 0
	}
	actorName := d.actorName(ctx, ev.Actor)

	sent := 0
	for _, dl := range deliveries {
		if err := d.deliver(ctx, ev, dl, actorName); err != nil {
			log.Printf("[notify][%s][err] task=%s recipient=%s: %v", dl.Kind, ev.TaskID, dl.RecipientID, err)
			continue
		}
		sent++
	}
	log.Printf("[notify][ok] task=%s planned=%d sent=%d", ev.TaskID, len(deliveries), sent)
	return sent
}

func (d *NotificationDispatcher) deliver(ctx context.Context, ev MutationEvent, dl Delivery, actorName string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[notify][%s][panic] recipient=%s: %v", dl.Kind, dl.RecipientID, r)
			err = errDeliveryPanic
		}
	}()
	switch dl.Kind {
	case models.NotificationAssigned:
		return d.notifier.NotifyAssigned(ctx, ev.TaskID, dl.RecipientID, ev.Title, ev.ProjectID)
	case models.NotificationCompleted:
		return d.notifier.NotifyCompleted(ctx, dl.RecipientID, ev.TaskID, ev.Title, actorName, ev.ProjectID)
	case models.NotificationUpdated:
		return d.notifier.NotifyUpdated(ctx, ev.TaskID, dl.RecipientID, ev.Title, actorName, ev.ProjectID)
	}
	return nil
}

func (d *NotificationDispatcher) actorName(ctx context.Context, actor models.Actor) string {
	if actor.DisplayName != "" {
		return actor.DisplayName
	}
	if d.users != nil {
		u, err := d.users.GetByID(ctx, actor.UserID)
		if err == nil && u.DisplayName != "" {
			return u.DisplayName
		}
		if err != nil {
			log.Printf("[notify][actor][warn] user=%s: %v", actor.UserID, err)
		}
	}
	return "Someone"
}

func uniqueExcept(ids []string, exclude string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, id := range ids {
		if id == "" || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
