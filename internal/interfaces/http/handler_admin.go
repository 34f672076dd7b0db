package http

import (
	"net/http"

	"project_supportbot/internal/usecases"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	auth *usecases.AuthUsecase
}

func NewAdminHandler(auth *usecases.AuthUsecase) *AdminHandler {
	return &AdminHandler{auth: auth}
}

// Login exchanges operator credentials for a JWT
func (h *AdminHandler) Login(c *gin.Context) {
	if h.auth == nil || !h.auth.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access is not configured"})
		return
	}

	var loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidateLength(loginReq.Username, 1, MaxCredentialLen) || !ValidateLength(loginReq.Password, 1, MaxCredentialLen) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.auth.Login(loginReq.Username, loginReq.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(usecases.TokenTTL.Seconds())})
}
