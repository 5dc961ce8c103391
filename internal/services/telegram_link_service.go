package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
	"taskflow/internal/utils"
)

const linkCodeTTL = 30 * time.Minute

// TelegramLinkService binds Telegram chats to users so the telegram channel
// knows where to deliver.
type TelegramLinkService interface {
	RequestCode(ctx context.Context, actor models.Actor) (*repositories.TelegramLink, error)
	// Link consumes a code typed into the bot and returns the linked user id.
	Link(ctx context.Context, rawCode string, chatID int64) (string, error)
}

type telegramLinkService struct {
	links repositories.TelegramLinkRepository
	users repositories.UserRepository
}

func NewTelegramLinkService(links repositories.TelegramLinkRepository, users repositories.UserRepository) TelegramLinkService {
	return &telegramLinkService{links: links, users: users}
}

func (s *telegramLinkService) RequestCode(ctx context.Context, actor models.Actor) (*repositories.TelegramLink, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	code, err := utils.NewLinkCode()
	if err != nil {
		return nil, fmt.Errorf("link code: %w", err)
	}
	link, err := s.links.Create(ctx, actor.UserID, code, linkCodeTTL)
	if err != nil {
		return nil, fmt.Errorf("store link code: %w", err)
	}
	log.Printf("[tg][link][code] user=%s expires=%s", actor.UserID, link.ExpiresAt.Format(time.RFC3339))
	return link, nil
}

func (s *telegramLinkService) Link(ctx context.Context, rawCode string, chatID int64) (string, error) {
	code, ok := utils.NormalizeLinkCode(rawCode)
	if !ok {
		return "", validationError("link code must be %d hex characters", utils.LinkCodeLen)
	}
	link, err := s.links.UseByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if err := s.users.UpdateTelegramLink(ctx, link.UserID, chatID, true); err != nil {
		return "", fmt.Errorf("update telegram link: %w", err)
	}
	log.Printf("[tg][link][ok] user=%s chatID=%d", link.UserID, chatID)
	return link.UserID, nil
}
