package http

import (
	"net/http"

	"project_supportbot/internal/interfaces"

	"github.com/gin-gonic/gin"
)

// TelegramHandler reports on the Telegram renderer
type TelegramHandler struct {
	bot interfaces.BotStatus
}

// NewTelegramHandler accepts a nil bot when no token is configured
func NewTelegramHandler(bot interfaces.BotStatus) *TelegramHandler {
	return &TelegramHandler{bot: bot}
}

func (h *TelegramHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/telegram", h.GetStatus)
}

func (h *TelegramHandler) GetStatus(c *gin.Context) {
	if h.bot == nil {
		c.JSON(http.StatusOK, gin.H{"configured": false, "connected": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"configured": true,
		"connected":  h.bot.Connected(),
		"bot_name":   h.bot.BotName(),
		"bound_chat": h.bot.BoundChat(),
	})
}
