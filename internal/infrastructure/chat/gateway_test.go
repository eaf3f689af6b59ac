package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/internal/core/services"
	"livegate/internal/infrastructure/repositories/memory"
)

type chatFixture struct {
	gateway *Gateway
	lives   ports.LiveService
	auth    services.AuthService
	server  *httptest.Server
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	log := zap.NewNop().Sugar()

	authService := services.NewAuthService("test-jwt-secret", 15*time.Minute, 7*24*time.Hour)
	tokenService := services.NewTokenService(
		"test-app", "test-rtc-secret",
		domain.DefaultCredentialTTL, domain.EphemeralCredentialTTL,
		nil, nil, log,
	)

	liveRepo := memory.NewMemoryLiveRepository()
	messageRepo := memory.NewMemoryMessageRepository(50)
	counter := memory.NewMemoryViewerCounter()
	viewerService := services.NewViewerService(counter, liveRepo, nil, log)
	liveService := services.NewLiveService(liveRepo, messageRepo, tokenService, viewerService, nil, nil, log)

	gateway := NewGateway(liveService, authService, []string{"*"}, 4096, nil, log)
	server := httptest.NewServer(http.HandlerFunc(gateway.HandleWebSocket))
	t.Cleanup(server.Close)

	return &chatFixture{gateway: gateway, lives: liveService, auth: authService, server: server}
}

func (f *chatFixture) createLive(t *testing.T) *domain.LiveSession {
	t.Helper()
	live, _, err := f.lives.CreateLive(context.Background(), "host-1", ports.CreateLiveInput{
		Title: "chat test",
	}, "")
	require.NoError(t, err)
	return live
}

func (f *chatFixture) dial(t *testing.T, liveID domain.LiveID, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?live_id=" + string(liveID)
	if token != "" {
		url += "&token=" + token
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type receivedFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Payload struct {
		Sender  domain.Identity `json:"sender"`
		Content string          `json:"content"`
	} `json:"payload"`
}

// readFrame decodes the next frame, failing the test if none arrives in time.
func readFrame(t *testing.T, conn *websocket.Conn) receivedFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame receivedFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// Many goroutines fan messages out to the same connection while the reader
// drains it. Every write to the socket has to be serialized; run with the
// race detector to catch interleaved writes.
func TestGateway_ConcurrentBroadcast(t *testing.T) {
	f := newChatFixture(t)
	live := f.createLive(t)
	conn := f.dial(t, live.ID, "")

	require.Eventually(t, func() bool {
		return f.gateway.ConnectionCount(live.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	const writers = 16
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				f.gateway.Broadcast(live.ID, &domain.ChatMessage{
					ID:        fmt.Sprintf("msg_%d_%d", w, i),
					LiveID:    live.ID,
					Sender:    "host-1",
					Type:      domain.MessageText,
					Content:   "fanout",
					CreatedAt: time.Now(),
				})
			}
		}(w)
	}

	received := 0
	for received < writers*perWriter {
		frame := readFrame(t, conn)
		if frame.Type == "message" && frame.Payload.Content == "fanout" {
			received++
		}
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, received)
}

func TestGateway_MessageRoundTrip(t *testing.T) {
	f := newChatFixture(t)
	live := f.createLive(t)

	token, err := f.auth.GenerateToken("alice")
	require.NoError(t, err)
	conn := f.dial(t, live.ID, token)

	require.NoError(t, conn.WriteJSON(Frame{
		Type:    "message",
		Payload: []byte(`{"content":"hello room"}`),
	}))

	frame := readFrame(t, conn)
	require.Equal(t, "message", frame.Type)
	assert.Equal(t, domain.Identity("alice"), frame.Payload.Sender)
	assert.Equal(t, "hello room", frame.Payload.Content)

	// The message is persisted, not just relayed.
	msgs, err := f.lives.ListMessages(context.Background(), live.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello room", msgs[0].Content)
}

func TestGateway_AnonymousCannotPost(t *testing.T) {
	f := newChatFixture(t)
	live := f.createLive(t)
	conn := f.dial(t, live.ID, "")

	require.NoError(t, conn.WriteJSON(Frame{
		Type:    "message",
		Payload: []byte(`{"content":"hi"}`),
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.NotEmpty(t, frame.Message)
}

func TestGateway_UnknownLiveRejectedBeforeUpgrade(t *testing.T) {
	f := newChatFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/?live_id=live_d9c1a1f0-6b55-4f7e-a2a7-0adbb6a0a8c1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
