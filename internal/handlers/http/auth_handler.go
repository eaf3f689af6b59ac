package http

import (
	"net/http"
	"strings"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/services"
	"livegate/pkg/errors"
	"livegate/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService    services.AuthService
	accessTokenTTL time.Duration
}

func NewAuthHandler(authService services.AuthService, accessTokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accessTokenTTL: accessTokenTTL,
	}
}

// SetupRoutes registers the auth endpoints. The quota middleware guards
// credential guessing on this group; the general API quota is too loose
// for login attempts.
func (h *AuthHandler) SetupRoutes(router *gin.Engine, quota gin.HandlerFunc) {
	api := router.Group("/api/v1/auth")
	if quota != nil {
		api.Use(quota)
	}
	{
		api.POST("/login", h.Login)
		api.POST("/refresh", h.RefreshToken)
	}
}

type LoginRequest struct {
	Identity string `json:"identity" binding:"required,max=64"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

// Login binds a caller to an identity. The identity is the stable string
// later hashed into the actor id, so the same identity always maps to the
// same actor across sessions.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		c.Error(errors.NewInvalidInputError("identity is required"))
		return
	}
	if err := validation.ValidateIdentity(req.Identity); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	identity := domain.Identity(req.Identity)

	accessToken, err := h.authService.GenerateToken(identity)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken(identity)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate refresh token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":      identity,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(h.accessTokenTTL / time.Second),
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Error(errors.NewUnauthorizedError("invalid refresh token"))
		return
	}

	accessToken, err := h.authService.GenerateToken(claims.Identity)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(h.accessTokenTTL / time.Second),
	})
}
