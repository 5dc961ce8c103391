package services

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/models"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramService is a notification Channel backed by the Bot API.
type TelegramService struct {
	bot telegramSender
}

// NewTelegramService connects to the Bot API. It fails when the token is
// rejected.
func NewTelegramService(botToken string) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Printf("[tg][init] authorized as @%s", bot.Self.UserName)
	return &TelegramService{bot: bot}, nil
}

func (t *TelegramService) Name() string { return "telegram" }

func (t *TelegramService) Send(_ context.Context, user *models.User, n *models.Notification) error {
	if t == nil || t.bot == nil || user == nil {
		return nil
	}
	if !user.NotifyTelegram || user.TelegramChatID == 0 {
		log.Printf("[tg][skip] user=%s allow=%v chatID=%d", user.ID, user.NotifyTelegram, user.TelegramChatID)
		return nil
	}

	msg := tgbotapi.NewMessage(user.TelegramChatID, formatTelegram(n))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

// SendText sends an HTML reply to a chat, used by the bot webhook.
func (t *TelegramService) SendText(chatID int64, text string) error {
	if t == nil || t.bot == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[tg][reply][err] chatID=%d: %v", chatID, err)
		return err
	}
	return nil
}

func formatTelegram(n *models.Notification) string {
	prefix := "✏️ Task updated"
	switch n.Kind {
	case models.NotificationAssigned:
		prefix = "👤 Task assigned"
	case models.NotificationCompleted:
		prefix = "✅ Task completed"
	}
	return prefix + "\n" +
		"• <b>" + html.EscapeString(n.Message) + "</b>\n" +
		"• Task: <code>" + n.TaskID + "</code>"
}
