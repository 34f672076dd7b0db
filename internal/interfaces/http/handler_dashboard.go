package http

import (
	"errors"
	"net/http"
	"strconv"

	"project_supportbot/internal/observability"
	"project_supportbot/internal/usecases"

	"github.com/gin-gonic/gin"
)

// GetAnalytics summarises the current conversation; ?top=K limits the top intents
func (h *Handler) GetAnalytics(c *gin.Context) {
	topK := h.topK
	if raw := c.Query("top"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a positive integer"})
			return
		}
		topK = k
	}

	report := h.session.Analytics(topK)
	c.JSON(http.StatusOK, gin.H{
		"session_id": h.session.ID(),
		"analytics":  report,
	})
}

// GetAllConfigs lists stored settings plus the effective performance figures
func (h *Handler) GetAllConfigs(c *gin.Context) {
	ctx := c.Request.Context()
	configs, err := h.dashboard.GetAllConfigs(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("list settings failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"configs":     configs,
		"performance": h.dashboard.PerformanceFigures(ctx),
	})
}

func (h *Handler) SetConfig(c *gin.Context) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !ValidConfigKey(req.Key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config key"})
		return
	}
	value := SanitizeString(req.Value)
	if !ValidateLength(value, 0, MaxConfigValLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Config value too long"})
		return
	}

	ctx := c.Request.Context()
	if err := h.dashboard.SetConfig(ctx, req.Key, value); err != nil {
		if errors.Is(err, usecases.ErrInvalidSetting) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		observability.LoggerFromContext(ctx).Error("save setting failed", "key", req.Key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save config"})
		return
	}

	if req.Key == usecases.KeyWelcomeMessage {
		h.session.SetGreeting(value)
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
