package router

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/presence"
	"realtime_chat_service/internal/chat/registry"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"
	testtool "realtime_chat_service/pkg/test_tool"
	"realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	baseURL string
	reg     *registry.Registry
	thread  *domain.Thread
}

// startServer 啟動完整的 gateway (memory store) 在隨機 port
func startServer(t *testing.T) *server {
	t.Helper()
	return startServerWith(t, app.WebsocketOptions{})
}

func startServerWith(t *testing.T, opts app.WebsocketOptions) *server {
	t.Helper()
	logger.SetNewNop()
	token.SetSecret("router-test-secret")

	ctx, cancel := context.WithCancel(context.Background())
	users := repository.NewMemoryUserRepository(
		domain.User{ID: "alice", Username: "alice", DisplayName: "Alice"},
		domain.User{ID: "bob", Username: "bob", DisplayName: "Bob"},
	)
	threads := repository.NewMemoryThreadRepository()
	thread, err := threads.GetOrCreateThread(ctx, "alice", "bob")
	require.NoError(t, err)

	var broadcaster *app.PresenceBroadcaster
	tracker := presence.NewTracker(func(ctx context.Context, change domain.StatusChange) {
		broadcaster.Notify(ctx, change)
	}, nil)
	reg := registry.New(registry.WithListener(tracker))
	deliverer := app.NewLocalDeliverer(reg)
	broadcaster = app.NewPresenceBroadcaster(threads, deliverer)
	go tracker.Run(ctx)

	messages := app.NewMessageUseCase(threads, users, deliverer, nil, 0)
	r := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterRoutes(ctx, r, app.NewChatWebsocketHandler(reg, messages, opts))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = r.Listener(ln) }()

	t.Cleanup(func() {
		reg.CloseAll()
		cancel()
		_ = r.ShutdownWithTimeout(time.Second)
	})
	return &server{baseURL: "ws://" + ln.Addr().String(), reg: reg, thread: thread}
}

func readFrame(t *testing.T, conn *gws.Conn) (domain.EnvelopeType, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f struct {
		Type domain.EnvelopeType `json:"type"`
		Data json.RawMessage     `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &f))
	return f.Type, f.Data
}

func TestChatWebsocket_Unauthenticated(t *testing.T) {
	s := startServer(t)

	for _, tok := range []string{"", "not-a-jwt"} {
		conn, _, err := testtool.DialChat(s.baseURL, tok)
		require.NoError(t, err, "handshake must complete")

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, _, err = conn.ReadMessage()
		assert.True(t, gws.IsCloseError(err, 4001), "got %v", err)
		_ = conn.Close()
	}
	assert.Equal(t, 0, s.reg.Count())
}

func TestChatWebsocket_NotUpgrade(t *testing.T) {
	r := fiber.New()
	RegisterRoutes(context.Background(), r, nil)
	resp, err := r.Test(httptest.NewRequest("GET", "/ws/chat/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatWebsocket_MessageFlowAndPresence(t *testing.T) {
	s := startServer(t)

	aliceConn, _, err := testtool.DialChat(s.baseURL, testtool.MustToken("alice"))
	require.NoError(t, err)
	defer aliceConn.Close()
	require.Eventually(t, func() bool { return s.reg.IsOnline("alice") }, 2*time.Second, 10*time.Millisecond)

	bobConn, _, err := testtool.DialChat(s.baseURL, testtool.MustToken("bob"))
	require.NoError(t, err)

	// alice 與 bob 同在一個 thread, bob 上線時 alice 收到 user_status
	typ, data := readFrame(t, aliceConn)
	require.Equal(t, domain.UserStatus, typ)
	var status domain.StatusPayload
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, "bob", status.UserID)
	assert.True(t, status.IsOnline)
	assert.Nil(t, status.LastSeen)

	require.NoError(t, bobConn.WriteJSON(map[string]interface{}{
		"type":      "chat_message",
		"thread_id": s.thread.ID,
		"message":   "hi alice",
	}))

	typ, data = readFrame(t, bobConn)
	require.Equal(t, domain.MessageAck, typ)
	var ack domain.MessagePayload
	require.NoError(t, json.Unmarshal(data, &ack))

	typ, data = readFrame(t, aliceConn)
	require.Equal(t, domain.NewMessage, typ)
	var got domain.MessagePayload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ack.ID, got.ID)
	assert.Equal(t, "hi alice", got.Message)
	assert.Equal(t, "Bob", got.User.DisplayName)

	// bob 離線, alice 收到帶 last_seen 的 user_status
	require.NoError(t, bobConn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "")))
	_ = bobConn.Close()

	typ, data = readFrame(t, aliceConn)
	require.Equal(t, domain.UserStatus, typ)
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, "bob", status.UserID)
	assert.False(t, status.IsOnline)
	assert.NotNil(t, status.LastSeen)
	assert.False(t, s.reg.IsOnline("bob"))
}

// client 只回 pong 不送 data frame, 超過 idle_timeout 後 server 正常關閉
func TestChatWebsocket_IdleTimeout(t *testing.T) {
	s := startServerWith(t, app.WebsocketOptions{
		IdleTimeout:  300 * time.Millisecond,
		PingInterval: 50 * time.Millisecond,
	})

	start := time.Now()
	conn, _, err := testtool.DialChat(s.baseURL, testtool.MustToken("alice"))
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.reg.IsOnline("alice") }, 2*time.Second, 10*time.Millisecond)

	// gorilla 預設 ping handler 在 ReadMessage 期間自動回 pong
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gws.IsCloseError(err, gws.CloseNormalClosure), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

	require.Eventually(t, func() bool { return !s.reg.IsOnline("alice") }, 2*time.Second, 10*time.Millisecond)
}
