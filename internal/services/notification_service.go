package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// Channel pushes an already stored notification to an external medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, user *models.User, n *models.Notification) error
}

// NotificationService stores in-app notifications, mirrors them to the
// configured channels and serves the inbox.
type NotificationService interface {
	Notifier
	List(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, actor models.Actor, id string) error
}

type notificationService struct {
	repo     repositories.NotificationRepository
	users    repositories.UserRepository
	channels []Channel
	now      func() time.Time
}

func NewNotificationService(repo repositories.NotificationRepository, users repositories.UserRepository, channels ...Channel) NotificationService {
	return &notificationService{repo: repo, users: users, channels: channels, now: time.Now}
}

func (s *notificationService) NotifyAssigned(ctx context.Context, taskID, recipientID, title, projectID string) error {
	msg := fmt.Sprintf("You have been assigned to %q", title)
	return s.store(ctx, models.NotificationAssigned, recipientID, taskID, projectID, msg)
}

func (s *notificationService) NotifyCompleted(ctx context.Context, recipientID, taskID, title, actorDisplayName, projectID string) error {
	msg := fmt.Sprintf("%s completed %q", actorDisplayName, title)
	return s.store(ctx, models.NotificationCompleted, recipientID, taskID, projectID, msg)
}

func (s *notificationService) NotifyUpdated(ctx context.Context, taskID, recipientID, title, actorDisplayName, projectID string) error {
	msg := fmt.Sprintf("%s updated %q", actorDisplayName, title)
	return s.store(ctx, models.NotificationUpdated, recipientID, taskID, projectID, msg)
}

func (s *notificationService) store(ctx context.Context, kind models.NotificationKind, recipientID, taskID, projectID, msg string) error {
	n := &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Kind:        kind,
		TaskID:      taskID,
		ProjectID:   projectID,
		Message:     msg,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	s.push(ctx, n)
	return nil
}

// push mirrors n to external channels. Channel failures are logged only;
// the stored row is the notification of record.
func (s *notificationService) push(ctx context.Context, n *models.Notification) {
	if len(s.channels) == 0 || s.users == nil {
		return
	}
	user, err := s.users.GetByID(ctx, n.RecipientID)
	if err != nil {
		log.Printf("[notify][push][warn] recipient=%s: %v", n.RecipientID, err)
		return
	}
	for _, ch := range s.channels {
		if err := ch.Send(ctx, user, n); err != nil {
			log.Printf("[notify][push][%s][err] recipient=%s: %v", ch.Name(), n.RecipientID, err)
		}
	}
}

func (s *notificationService) List(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByRecipient(ctx, actor.UserID, unreadOnly, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return validationError("invalid notification id")
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
