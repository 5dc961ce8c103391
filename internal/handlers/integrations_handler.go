package handlers

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskflow/internal/services"
)

// TelegramReplier sends bot replies. *services.TelegramService satisfies it.
type TelegramReplier interface {
	SendText(chatID int64, text string) error
}

type IntegrationsHandler struct {
	tg            TelegramReplier
	links         services.TelegramLinkService
	webhookSecret string
}

func NewIntegrationsHandler(tg TelegramReplier, links services.TelegramLinkService, webhookSecret string) *IntegrationsHandler {
	return &IntegrationsHandler{tg: tg, links: links, webhookSecret: webhookSecret}
}

type tgUpdate struct {
	Message *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Webhook handles bot updates. Telegram retries non-2xx responses, so every
// processed update answers 200.
func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	if h.webhookSecret != "" && !secretMatches(c.GetHeader("X-Telegram-Bot-Api-Secret-Token"), h.webhookSecret) {
		log.Printf("[tg][webhook][deny] bad secret token")
		c.Status(http.StatusUnauthorized)
		return
	}

	var up tgUpdate
	if err := c.ShouldBindJSON(&up); err != nil || up.Message == nil {
		if err != nil {
			log.Printf("[tg][webhook][bind][err] %v", err)
		}
		c.Status(http.StatusOK)
		return
	}

	text := strings.TrimSpace(up.Message.Text)
	chatID := up.Message.Chat.ID
	log.Printf("[tg][webhook] chatID=%d text=%q", chatID, text)

	switch {
	case strings.HasPrefix(text, "/start"):
		_ = h.tg.SendText(chatID, "Hi! To receive task notifications here, send:\n<code>/link &lt;code&gt;</code>\nGet the code from your taskflow profile.")

	case strings.HasPrefix(text, "/link"):
		raw := strings.TrimSpace(strings.TrimPrefix(text, "/link"))
		_, err := h.links.Link(c.Request.Context(), raw, chatID)
		switch {
		case err == nil:
			_ = h.tg.SendText(chatID, "Done! Your account is linked. Task notifications will arrive in this chat.")
		case errors.Is(err, services.ErrValidation):
			_ = h.tg.SendText(chatID, "Invalid code format. Send exactly 32 hex characters:\n<code>/link 0123456789ABCDEF0123456789ABCDEF</code>")
		case errors.Is(err, services.ErrNotFound):
			_ = h.tg.SendText(chatID, "The code is invalid or expired. Request a new one in your profile.")
		default:
			log.Printf("[tg][webhook][link][err] chatID=%d: %v", chatID, err)
			_ = h.tg.SendText(chatID, "Could not link the account, please try again later.")
		}

	default:
		_ = h.tg.SendText(chatID, "Unknown command. Use <code>/link &lt;code&gt;</code>.")
	}

	c.Status(http.StatusOK)
}

// POST /integrations/telegram/request-link
func (h *IntegrationsHandler) RequestTelegramLink(c *gin.Context) {
	actor := actorFromCtx(c)
	link, err := h.links.RequestCode(c.Request.Context(), actor)
	if err != nil {
		writeError(c, "[tg][request-link]", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":       link.Code,
		"expires_at": link.ExpiresAt,
		"hint":       "Open the bot chat and send: /link " + link.Code,
	})
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
