package models

// User is the read-only view of an account the pipeline needs for
// notifications.
type User struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"-"`
	NotifyTelegram bool   `json:"-"`
	NotifyEmail    bool   `json:"-"`
}

// Actor is the authenticated user performing a request. It is passed
// explicitly through every pipeline call.
type Actor struct {
	UserID      string
	DisplayName string
}
