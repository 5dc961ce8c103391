package services

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"taskflow/internal/models"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService is a notification Channel that sends one e-mail per
// notification to users who opted in.
type EmailService struct {
	dialer mailSender
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) *EmailService {
	return &EmailService{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

func (s *EmailService) Name() string { return "email" }

func (s *EmailService) Send(_ context.Context, user *models.User, n *models.Notification) error {
	if user == nil || !user.NotifyEmail || user.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", emailSubject(n.Kind))

	body := fmt.Sprintf(`
		<p>%s</p>
		<p>Task: <code>%s</code></p>
	`, html.EscapeString(n.Message), html.EscapeString(n.TaskID))
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}

func emailSubject(kind models.NotificationKind) string {
	switch kind {
	case models.NotificationAssigned:
		return "You have been assigned a task"
	case models.NotificationCompleted:
		return "A task was completed"
	}
	return "A task was updated"
}
