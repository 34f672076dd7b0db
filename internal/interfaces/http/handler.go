package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"project_supportbot/internal/entities"
	"project_supportbot/internal/interfaces"
	"project_supportbot/internal/observability"
	"project_supportbot/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

const (
	maxRequestBytes = 1 << 20
	eventBuffer     = 64
	qrSize          = 256
)

// ChatSession is the conversation as seen by the HTTP renderer
type ChatSession interface {
	interfaces.Conversation
	ID() string
	Epoch() uint64
	Analytics(topK int) usecases.AnalyticsReport
	SetGreeting(greeting string)
}

// RouterDeps collects everything SetupRoutes wires together. Telegram may be nil.
type RouterDeps struct {
	Session    ChatSession
	Dashboard  *usecases.DashboardUsecase
	Auth       *usecases.AuthUsecase
	Telegram   interfaces.BotStatus
	Middleware *Middleware

	TopK      int
	PublicURL string
	RateLimit rate.Limit
	RateBurst int
}

type Handler struct {
	session   ChatSession
	dashboard *usecases.DashboardUsecase
	topK      int
	publicURL string
}

func NewHandler(session ChatSession, dashboard *usecases.DashboardUsecase, topK int, publicURL string) *Handler {
	if topK <= 0 {
		topK = usecases.DefaultTopK
	}
	return &Handler{
		session:   session,
		dashboard: dashboard,
		topK:      topK,
		publicURL: publicURL,
	}
}

func SetupRoutes(r *gin.Engine, deps RouterDeps) {
	h := NewHandler(deps.Session, deps.Dashboard, deps.TopK, deps.PublicURL)
	adminHandler := NewAdminHandler(deps.Auth)
	telegramHandler := NewTelegramHandler(deps.Telegram)
	middleware := deps.Middleware

	r.Use(RequestID())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(maxRequestBytes))
	r.Use(middleware.CORSMiddleware())

	r.GET("/healthz", h.Health)

	chat := r.Group("/api/chat")
	chat.Use(middleware.RateLimitPerClient(deps.RateLimit, deps.RateBurst))
	{
		chat.POST("/messages", h.PostMessage)
		chat.GET("/messages", h.GetMessages)
		chat.GET("/quick-replies", h.GetQuickReplies)
		chat.POST("/quick-replies/:index", h.PostQuickReply)
		chat.POST("/reset", h.Reset)
		chat.GET("/status", h.GetStatus)
		chat.GET("/analytics", h.GetAnalytics)
	}
	// the event stream is long-lived and stays outside the rate limiter
	r.GET("/api/chat/events", h.Events)
	r.GET("/api/share/qr", h.ShareQR)

	r.POST("/api/auth/login", middleware.RateLimitPerClient(deps.RateLimit, deps.RateBurst), adminHandler.Login)

	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/config", h.GetAllConfigs)
		admin.POST("/config", h.SetConfig)
		telegramHandler.RegisterRoutes(admin)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "session_id": h.session.ID()})
}

// PostMessage submits typed text: 202 accepted, 204 blank, 409 while a reply is pending
func (h *Handler) PostMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	text := SanitizeString(req.Text)
	if !ValidateLength(text, 0, MaxMessageLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message too long"})
		return
	}

	msg, err := h.session.Submit(text)
	h.respondSubmitted(c, msg, err)
}

func (h *Handler) PostQuickReply(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quick reply index must be a number"})
		return
	}

	msg, err := h.session.SubmitQuickReply(index)
	h.respondSubmitted(c, msg, err)
}

func (h *Handler) respondSubmitted(c *gin.Context, msg *entities.Message, err error) {
	switch {
	case errors.Is(err, entities.ErrConversationBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "A reply is still pending", "status": h.session.Status()})
	case errors.Is(err, entities.ErrUnknownQuickReply):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown quick reply"})
	case errors.Is(err, entities.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message"})
	case err != nil:
		observability.LoggerFromContext(c.Request.Context()).Error("submit failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit message"})
	case msg == nil:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusAccepted, gin.H{"message": msg, "status": h.session.Status()})
	}
}

func (h *Handler) GetMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_id": h.session.ID(),
		"status":     h.session.Status(),
		"messages":   h.session.Snapshot(),
	})
}

func (h *Handler) GetQuickReplies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"quick_replies": h.session.QuickReplies()})
}

func (h *Handler) Reset(c *gin.Context) {
	greeting := h.session.ResetConversation()
	c.JSON(http.StatusOK, gin.H{"greeting": greeting, "status": h.session.Status()})
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_id":    h.session.ID(),
		"status":        h.session.Status(),
		"epoch":         h.session.Epoch(),
		"message_count": len(h.session.Snapshot()),
	})
}

// Events streams conversation events as Server-Sent Events, starting with a snapshot
func (h *Handler) Events(c *gin.Context) {
	log := observability.LoggerFromContext(c.Request.Context())
	events := make(chan entities.Event, eventBuffer)
	unsubscribe := h.session.Subscribe(func(ev entities.Event) {
		select {
		case events <- ev:
		default:
			log.Warn("dropping event for slow subscriber", "type", ev.Type)
		}
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("snapshot", gin.H{
		"session_id": h.session.ID(),
		"status":     h.session.Status(),
		"messages":   h.session.Snapshot(),
	})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}

// ShareQR renders the public chat URL as a PNG QR code
func (h *Handler) ShareQR(c *gin.Context) {
	if h.publicURL == "" {
		c.String(http.StatusServiceUnavailable, "Public URL not configured")
		return
	}
	png, err := qrcode.Encode(h.publicURL, qrcode.Medium, qrSize)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
