package http

import (
	"net/http"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/internal/infrastructure/middleware"
	"livegate/pkg/errors"
	"livegate/pkg/utils"
	"livegate/pkg/validation"

	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	tokenService ports.TokenService
}

func NewTokenHandler(tokenService ports.TokenService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
	}
}

// SetupRoutes registers token endpoints. optionalAuth resolves the caller
// identity when present, requiredAuth rejects anonymous callers.
func (h *TokenHandler) SetupRoutes(router *gin.Engine, optionalAuth, requiredAuth gin.HandlerFunc) {
	api := router.Group("/api/v1/tokens")
	{
		api.POST("", optionalAuth, h.IssueToken)
		api.POST("/viewer", optionalAuth, h.IssueViewerToken)
		api.POST("/host", requiredAuth, h.IssueHostToken)
		api.POST("/refresh", optionalAuth, h.RefreshToken)
		api.GET("/config", h.GetConfig)
		api.GET("/config/test", h.TestConfig)
	}
}

type IssueTokenRequest struct {
	Channel         string `json:"channel" binding:"required,max=64"`
	Identity        string `json:"identity" binding:"max=255"`
	Role            string `json:"role" binding:"max=16"`
	DurationSeconds int64  `json:"duration_seconds" binding:"min=0"`
}

// IssueToken issues a credential for any role. The authenticated identity
// wins over the one in the body so a caller cannot mint credentials that
// hash to someone else's actor id.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		c.Error(errors.NewInvalidInputError("role must be publisher or subscriber"))
		return
	}

	h.issue(c, req.Channel, req.Identity, role, req.DurationSeconds)
}

type ViewerTokenRequest struct {
	Channel         string `json:"channel" binding:"required,max=64"`
	Identity        string `json:"identity" binding:"max=255"`
	DurationSeconds int64  `json:"duration_seconds" binding:"min=0"`
}

func (h *TokenHandler) IssueViewerToken(c *gin.Context) {
	var req ViewerTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	h.issue(c, req.Channel, req.Identity, domain.RoleSubscriber, req.DurationSeconds)
}

type HostTokenRequest struct {
	Channel         string `json:"channel" binding:"required,max=64"`
	DurationSeconds int64  `json:"duration_seconds" binding:"min=0"`
}

// IssueHostToken issues a publisher credential. Authentication is required,
// the identity always comes from the access token.
func (h *TokenHandler) IssueHostToken(c *gin.Context) {
	var req HostTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	h.issue(c, req.Channel, "", domain.RolePublisher, req.DurationSeconds)
}

// RefreshToken issues a short-lived replacement credential for an existing
// session, using the ephemeral validity window.
func (h *TokenHandler) RefreshToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		c.Error(errors.NewInvalidInputError("role must be publisher or subscriber"))
		return
	}

	ephemeral := h.tokenService.ConfigInfo().EphemeralTTLSecs
	h.issue(c, req.Channel, req.Identity, role, ephemeral)
}

func (h *TokenHandler) issue(c *gin.Context, channel, bodyIdentity string, role domain.Role, durationSeconds int64) {
	if err := validation.ValidateDurationSeconds(durationSeconds); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	identity := middleware.CallerIdentity(c)
	if identity == "" {
		identity = domain.Identity(bodyIdentity)
	}

	cred, err := h.tokenService.IssueCredential(c.Request.Context(), ports.IssueRequest{
		Channel:  channel,
		Identity: identity,
		Role:     role,
		Duration: time.Duration(durationSeconds) * time.Second,
		RateKey:  middleware.RateKey(c),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credential": cred,
		"expires_in": int(utils.TimeUntilExpiry(cred.IssuedAt, cred.ExpiresAt.Sub(cred.IssuedAt)) / time.Second),
	})
}

// GetConfig reports issuance configuration without secret material.
func (h *TokenHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.tokenService.ConfigInfo())
}

// TestConfig runs a throwaway issuance against a fixed test channel.
func (h *TokenHandler) TestConfig(c *gin.Context) {
	ok := h.tokenService.TestConfiguration(c.Request.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"is_config_valid": ok,
	})
}
