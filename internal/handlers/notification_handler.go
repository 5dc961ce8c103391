package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskflow/internal/services"
)

type NotificationHandler struct {
	service services.NotificationService
}

func NewNotificationHandler(service services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// @Summary      List my notifications
// @Tags         Notifications
// @Produce      json
// @Param        unread  query  bool  false  "Only unread"
// @Param        limit   query  int   false  "Max rows (default 50)"
// @Success      200  {array}  models.Notification
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor := actorFromCtx(c)

	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	items, err := h.service.List(c.Request.Context(), actor, unreadOnly, limit)
	if err != nil {
		writeError(c, "[notification][list]", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor := actorFromCtx(c)
	id := c.Param("id")
	if err := h.service.MarkRead(c.Request.Context(), actor, id); err != nil {
		writeError(c, "[notification][read]", err)
		return
	}
	log.Printf("[notification][read][ok] id=%s user=%s", id, actor.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
