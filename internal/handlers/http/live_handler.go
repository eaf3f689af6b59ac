package http

import (
	"net/http"
	"strconv"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/internal/infrastructure/chat"
	"livegate/internal/infrastructure/middleware"
	"livegate/pkg/errors"

	"github.com/gin-gonic/gin"
)

type LiveHandler struct {
	liveService ports.LiveService
	gateway     *chat.Gateway // nil when the chat gateway is disabled
}

func NewLiveHandler(liveService ports.LiveService, gateway *chat.Gateway) *LiveHandler {
	return &LiveHandler{
		liveService: liveService,
		gateway:     gateway,
	}
}

func (h *LiveHandler) SetupRoutes(router *gin.Engine, optionalAuth, requiredAuth gin.HandlerFunc) {
	api := router.Group("/api/v1/lives")
	{
		api.POST("", requiredAuth, h.CreateLive)
		api.GET("", h.ListLives)
		api.GET("/:id", h.GetLive)
		api.POST("/:id/end", requiredAuth, h.EndLive)
		api.POST("/:id/join", optionalAuth, h.JoinLive)
		api.POST("/:id/leave", optionalAuth, h.LeaveLive)
		api.GET("/:id/messages", h.ListMessages)
		api.POST("/:id/messages", requiredAuth, h.PostMessage)
	}
}

// liveResponse is the wire shape of a live session.
type liveResponse struct {
	ID          domain.LiveID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Host        string        `json:"host"`
	Channel     string        `json:"channel"`
	IsPrivate   bool          `json:"is_private"`
	MaxViewers  int           `json:"max_viewers,omitempty"`
	IsLive      bool          `json:"is_live"`
	ViewerCount int64         `json:"viewer_count"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
}

func toLiveResponse(live *domain.LiveSession) liveResponse {
	return liveResponse{
		ID:          live.ID,
		Title:       live.Title,
		Description: live.Description,
		Category:    live.Category,
		Tags:        live.Tags,
		Host:        string(live.HostID),
		Channel:     live.Channel,
		IsPrivate:   live.IsPrivate,
		MaxViewers:  live.MaxViewers,
		IsLive:      live.IsLive,
		ViewerCount: live.ViewerCount,
		StartedAt:   live.StartedAt,
		EndedAt:     live.EndedAt,
	}
}

type messageResponse struct {
	ID        string             `json:"id"`
	Sender    string             `json:"sender"`
	Type      domain.MessageType `json:"type"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
}

func toMessageResponse(msg *domain.ChatMessage) messageResponse {
	return messageResponse{
		ID:        msg.ID,
		Sender:    string(msg.Sender),
		Type:      msg.Type,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

type CreateLiveRequest struct {
	Title       string   `json:"title" binding:"required,max=100"`
	Description string   `json:"description" binding:"max=500"`
	Category    string   `json:"category" binding:"max=50"`
	Tags        []string `json:"tags" binding:"max=10"`
	IsPrivate   bool     `json:"is_private"`
	MaxViewers  int      `json:"max_viewers" binding:"min=0,max=10000"`
}

func (h *LiveHandler) CreateLive(c *gin.Context) {
	var req CreateLiveRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	live, cred, err := h.liveService.CreateLive(
		c.Request.Context(),
		middleware.CallerIdentity(c),
		ports.CreateLiveInput{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Tags:        req.Tags,
			IsPrivate:   req.IsPrivate,
			MaxViewers:  req.MaxViewers,
		},
		middleware.RateKey(c),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"live":       toLiveResponse(live),
		"credential": cred,
	})
}

func (h *LiveHandler) GetLive(c *gin.Context) {
	live, err := h.liveService.GetLive(c.Request.Context(), domain.LiveID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"live": toLiveResponse(live),
	})
}

func (h *LiveHandler) ListLives(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	lives, err := h.liveService.ListLives(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]liveResponse, 0, len(lives))
	for _, live := range lives {
		out = append(out, toLiveResponse(live))
	}

	c.JSON(http.StatusOK, gin.H{
		"lives":  out,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *LiveHandler) EndLive(c *gin.Context) {
	live, err := h.liveService.EndLive(
		c.Request.Context(),
		domain.LiveID(c.Param("id")),
		middleware.CallerIdentity(c),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"live": toLiveResponse(live),
	})
}

func (h *LiveHandler) JoinLive(c *gin.Context) {
	live, cred, err := h.liveService.JoinLive(
		c.Request.Context(),
		domain.LiveID(c.Param("id")),
		middleware.CallerIdentity(c),
		middleware.RateKey(c),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"live":       toLiveResponse(live),
		"credential": cred,
	})
}

func (h *LiveHandler) LeaveLive(c *gin.Context) {
	err := h.liveService.LeaveLive(
		c.Request.Context(),
		domain.LiveID(c.Param("id")),
		middleware.CallerIdentity(c),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "left",
	})
}

type PostMessageRequest struct {
	Type    string `json:"type" binding:"max=16"`
	Content string `json:"content" binding:"required,max=200"`
}

func (h *LiveHandler) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	msgType := domain.MessageType(req.Type)
	if req.Type == "" {
		msgType = domain.MessageText
	}

	msg, err := h.liveService.PostMessage(
		c.Request.Context(),
		domain.LiveID(c.Param("id")),
		middleware.CallerIdentity(c),
		msgType,
		req.Content,
	)
	if err != nil {
		c.Error(err)
		return
	}

	// Reach websocket clients too; HTTP does not wait for them.
	if h.gateway != nil {
		h.gateway.Broadcast(msg.LiveID, msg)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": toMessageResponse(msg),
	})
}

func (h *LiveHandler) ListMessages(c *gin.Context) {
	limit := queryInt(c, "limit", 50)

	msgs, err := h.liveService.ListMessages(c.Request.Context(), domain.LiveID(c.Param("id")), limit)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toMessageResponse(msg))
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": out,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
