package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/internal/core/services"
	"livegate/pkg/cache"
	"livegate/pkg/errors"
)

// ConnectionMetrics is the slice of the metrics surface the gateway needs.
type ConnectionMetrics interface {
	WSConnectionOpened()
	WSConnectionClosed()
}

// Gateway serves the live chat over websockets. One connection belongs to
// one live session; messages are persisted through the live service (which
// also enforces the messaging quota) and fanned out to every connection on
// the same session. Viewer accounting stays with the HTTP join/leave flow
// so a chat connection does not double-count a viewer.
type Gateway struct {
	lives ports.LiveService
	auth  services.AuthService

	connections map[domain.LiveID]map[*client]struct{}
	mu          sync.RWMutex

	upgrader  websocket.Upgrader
	relay     *Relay
	liveCache *cache.Cache

	pingInterval   time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64

	metrics ConnectionMetrics
	logger  *zap.SugaredLogger
}

// client wraps one websocket connection. gorilla/websocket allows at most
// one concurrent writer per connection; every write goes through the
// client's write mutex so a broadcast, the ping ticker and an error frame
// never interleave on the wire.
type client struct {
	conn     *websocket.Conn
	identity domain.Identity
	writeMu  sync.Mutex
}

func (c *client) writeJSON(v interface{}, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(v)
}

func (c *client) writePing(timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Frame is the wire format in both directions.
type Frame struct {
	Type    string          `json:"type"`
	LiveID  domain.LiveID   `json:"live_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type messagePayload struct {
	Type    domain.MessageType `json:"type"`
	Content string             `json:"content"`
}

type outgoingMessage struct {
	ID        string             `json:"id"`
	Sender    domain.Identity    `json:"sender"`
	Type      domain.MessageType `json:"type"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
}

func NewGateway(
	lives ports.LiveService,
	auth services.AuthService,
	allowedOrigins []string,
	maxMessageSize int64,
	metrics ConnectionMetrics,
	logger *zap.SugaredLogger,
) *Gateway {
	if maxMessageSize <= 0 {
		maxMessageSize = 4 * 1024
	}
	return &Gateway{
		lives:       lives,
		auth:        auth,
		connections: make(map[domain.LiveID]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval:   30 * time.Second,
		readTimeout:    60 * time.Second,
		writeTimeout:   10 * time.Second,
		maxMessageSize: maxMessageSize,
		liveCache:      cache.New(5 * time.Second),
		metrics:        metrics,
		logger:         logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(origin)] = true
	}
	return func(r *http.Request) bool {
		return set[strings.ToLower(r.Header.Get("Origin"))]
	}
}

// HandleWebSocket upgrades the request and runs the connection until the
// client goes away. Auth is optional: a valid bearer token (header or
// query parameter, browsers cannot set headers on websockets) resolves the
// sender identity, anonymous connections can read but not post.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	liveID := domain.LiveID(r.URL.Query().Get("live_id"))
	if liveID == "" {
		http.Error(w, "live_id query parameter is required", http.StatusBadRequest)
		return
	}

	if err := g.checkLive(r.Context(), liveID); err != nil {
		appErr := errors.GetAppError(err)
		if appErr != nil {
			http.Error(w, appErr.Message, appErr.HTTPStatus)
		} else {
			http.Error(w, "failed to load live session", http.StatusInternalServerError)
		}
		return
	}

	identity := g.resolveIdentity(r)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	cl := g.attach(liveID, conn, identity)
	defer g.detach(liveID, cl)

	g.logger.Infow("chat connection opened",
		"live_id", liveID,
		"identity", identity,
		"anonymous", identity == "",
	)

	g.sendHistory(r.Context(), cl, liveID)

	conn.SetReadLimit(g.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(g.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(g.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(g.pingInterval)
	defer pingTicker.Stop()

	frameChan := make(chan Frame, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var frame Frame
			if err := conn.ReadJSON(&frame); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(g.readTimeout))
			frameChan <- frame
		}
	}()

	for {
		select {
		case frame := <-frameChan:
			if err := g.handleFrame(context.Background(), liveID, identity, frame); err != nil {
				g.sendError(cl, err)
			}

		case <-pingTicker.C:
			if err := cl.writePing(g.writeTimeout); err != nil {
				g.logger.Debugw("ping failed, dropping connection", "live_id", liveID, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debugw("chat connection read error", "live_id", liveID, "error", err)
			}
			return
		}
	}
}

// checkLive verifies the session exists and is live before upgrading. The
// positive result is cached briefly so reconnect storms do not hammer the
// repository; a stale hit is bounded by the cache TTL and message posting
// still goes through the live service, which re-checks.
func (g *Gateway) checkLive(ctx context.Context, liveID domain.LiveID) error {
	if _, ok := g.liveCache.Get(string(liveID)); ok {
		return nil
	}

	live, err := g.lives.GetLive(ctx, liveID)
	if err != nil {
		return err
	}
	if live.IsLive {
		g.liveCache.Set(string(liveID), struct{}{})
	}
	return nil
}

func (g *Gateway) resolveIdentity(r *http.Request) domain.Identity {
	token := ""
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return ""
	}

	claims, err := g.auth.ValidateToken(token)
	if err != nil {
		return ""
	}
	return claims.Identity
}

func (g *Gateway) handleFrame(ctx context.Context, liveID domain.LiveID, identity domain.Identity, frame Frame) error {
	switch frame.Type {
	case "message":
		var payload messagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return fmt.Errorf("invalid message payload: %w", err)
		}
		if payload.Type == "" {
			payload.Type = domain.MessageText
		}

		msg, err := g.lives.PostMessage(ctx, liveID, identity, payload.Type, payload.Content)
		if err != nil {
			return err
		}

		g.Broadcast(liveID, msg)
		return nil

	case "ping":
		return nil

	default:
		return fmt.Errorf("unknown frame type: %s", frame.Type)
	}
}

// SetRelay connects the gateway to a cross-instance relay. Locally posted
// messages get published, remotely published ones get delivered to local
// connections.
func (g *Gateway) SetRelay(relay *Relay) {
	g.relay = relay
	relay.deliver = g.deliverLocal
}

// Broadcast fans a message out to every connection on the live session.
// Called from the websocket loop and from the HTTP message handler so both
// paths reach connected clients. With a relay attached, the message also
// reaches connections held by other instances.
func (g *Gateway) Broadcast(liveID domain.LiveID, msg *domain.ChatMessage) {
	g.deliverLocal(liveID, msg)

	if g.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.writeTimeout)
		defer cancel()
		if err := g.relay.Publish(ctx, msg); err != nil {
			g.logger.Warnw("chat relay publish failed", "live_id", liveID, "error", err)
		}
	}
}

func (g *Gateway) deliverLocal(liveID domain.LiveID, msg *domain.ChatMessage) {
	frame := g.messageFrame(msg)

	g.mu.RLock()
	clients := make([]*client, 0, len(g.connections[liveID]))
	for cl := range g.connections[liveID] {
		clients = append(clients, cl)
	}
	g.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.writeJSON(frame, g.writeTimeout); err != nil {
			g.logger.Debugw("broadcast write failed", "live_id", liveID, "error", err)
		}
	}
}

func (g *Gateway) messageFrame(msg *domain.ChatMessage) map[string]interface{} {
	return map[string]interface{}{
		"type":    "message",
		"live_id": msg.LiveID,
		"payload": outgoingMessage{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Type:      msg.Type,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		},
	}
}

func (g *Gateway) sendHistory(ctx context.Context, cl *client, liveID domain.LiveID) {
	msgs, err := g.lives.ListMessages(ctx, liveID, 0)
	if err != nil {
		g.logger.Warnw("failed to load chat history", "live_id", liveID, "error", err)
		return
	}

	for _, msg := range msgs {
		if err := cl.writeJSON(g.messageFrame(msg), g.writeTimeout); err != nil {
			return
		}
	}
}

func (g *Gateway) sendError(cl *client, err error) {
	payload := map[string]interface{}{
		"type":    "error",
		"message": err.Error(),
	}
	if appErr := errors.GetAppError(err); appErr != nil {
		payload["message"] = appErr.Message
		payload["code"] = string(appErr.Code)
	}
	cl.writeJSON(payload, g.writeTimeout)
}

func (g *Gateway) attach(liveID domain.LiveID, conn *websocket.Conn, identity domain.Identity) *client {
	cl := &client{conn: conn, identity: identity}

	g.mu.Lock()
	if g.connections[liveID] == nil {
		g.connections[liveID] = make(map[*client]struct{})
	}
	g.connections[liveID][cl] = struct{}{}
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.WSConnectionOpened()
	}
	return cl
}

func (g *Gateway) detach(liveID domain.LiveID, cl *client) {
	g.mu.Lock()
	delete(g.connections[liveID], cl)
	if len(g.connections[liveID]) == 0 {
		delete(g.connections, liveID)
	}
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.WSConnectionClosed()
	}
	g.logger.Infow("chat connection closed", "live_id", liveID)
}

// ConnectionCount reports connections attached to a live session.
func (g *Gateway) ConnectionCount(liveID domain.LiveID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections[liveID])
}
