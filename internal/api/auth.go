package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealmetrics/backend/internal/service"
)

// AuthHandler mints API tokens for the chat gateway. The gateway is the
// only caller that knows the shared secret, so this doubles as user
// registration: the first token request for a chat user creates their row.
type AuthHandler struct {
	authService *service.AuthService
	mealService *service.MealService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *service.AuthService, mealService *service.MealService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		mealService: mealService,
	}
}

// RegisterRoutes registers the auth routes.
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/token", h.IssueToken)
	}
}

// IssueToken exchanges the gateway secret plus a chat user identity for
// a short lived JWT.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	if !h.authService.CheckGatewaySecret(c.GetHeader("X-Gateway-Secret")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid gateway secret"})
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	if err := h.mealService.EnsureUser(c.Request.Context(), req.UserID, req.Username, req.FirstName, req.LastName); err != nil {
		log.Printf("[AuthHandler] failed to upsert user %d: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	token, err := h.authService.GenerateToken(req.UserID, req.Username)
	if err != nil {
		log.Printf("[AuthHandler] failed to generate token for user %d: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}
