package repositories

import (
	"context"
	"database/sql"
	"errors"

	"taskflow/internal/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateTelegramLink(ctx context.Context, id string, chatID int64, notify bool) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	const q = `
		SELECT id, display_name, email,
		       COALESCE(telegram_chat_id, 0), notify_telegram, notify_email
		FROM users
		WHERE id = $1`
	u := &models.User{}
	err := r.DB.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.DisplayName, &u.Email, &u.TelegramChatID, &u.NotifyTelegram, &u.NotifyEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepository) UpdateTelegramLink(ctx context.Context, id string, chatID int64, notify bool) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET telegram_chat_id = $2, notify_telegram = $3 WHERE id = $1`,
		id, chatID, notify)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
