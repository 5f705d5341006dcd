package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/registry"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CloseUnauthenticated close code sent when the handshake carries no valid identity
const CloseUnauthenticated = 4001

var (
	errSinkClosed     = errors.New("connection closed")
	errSendQueueFull  = errors.New("send queue full")
	rateLimitedDetail = "too many messages, slow down"
)

// MessageSender fan-out entry used by the gateway
type MessageSender interface {
	SendMessage(ctx context.Context, senderID string, target Target, body string) (*SentMessage, error)
}

// WebsocketOptions per-connection limits
type WebsocketOptions struct {
	// IdleTimeout closes a connection that sent no data frame for this long; pongs do not count
	IdleTimeout   time.Duration
	PingInterval  time.Duration
	WriteWait     time.Duration
	MaxFrameSize  int64
	SendQueueSize int
	// RatePerSecond <= 0 disables inbound rate limiting
	RatePerSecond float64
	RateBurst     int
}

func (o WebsocketOptions) withDefaults() WebsocketOptions {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.IdleTimeout {
		o.PingInterval = o.IdleTimeout * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = 64 * 1024
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	return o
}

// wsConn the part of *websocket.Conn the pumps use
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ChatWebsocketHandler gateway: Connecting -> Authenticated -> Open -> Closed
type ChatWebsocketHandler struct {
	registry *registry.Registry
	messages MessageSender
	opts     WebsocketOptions
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(reg *registry.Registry, messages MessageSender, opts WebsocketOptions) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		registry: reg,
		messages: messages,
		opts:     opts.withDefaults(),
	}
}

// HandleConnection 是 WebSocket 連線的進入點; identity comes from IdentityMiddleware
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, _ := conn.Locals(middlewares.TokenUserID).(string)
	h.serve(ctx, conn, userID)
}

func (h *ChatWebsocketHandler) serve(ctx context.Context, conn wsConn, userID string) {
	if userID == "" {
		h.reject(conn)
		return
	}

	sink := newConnSink(h.opts.SendQueueSize)
	connID, err := h.registry.Register(userID, sink)
	if err != nil {
		h.reject(conn)
		return
	}
	sink.log = logger.Log.With(zap.String("userID", userID), zap.String("connID", connID))
	sink.log.Info("websocket open")

	ctx, cancel := context.WithCancel(ctx)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		h.writePump(conn, sink)
	}()

	h.readPump(ctx, conn, sink, userID)

	cancel()
	h.registry.Unregister(connID)
	_ = sink.Close()
	<-writeDone
	sink.log.Info("websocket close")
}

func (h *ChatWebsocketHandler) reject(conn wsConn) {
	logger.Log.Debug("websocket rejected: unauthenticated")
	msg := websocket.FormatCloseMessage(CloseUnauthenticated, "unauthenticated")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteWait))
	_ = conn.Close()
}

func (h *ChatWebsocketHandler) readPump(ctx context.Context, conn wsConn, sink *connSink, userID string) {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if h.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.opts.RatePerSecond), h.opts.RateBurst)
	}

	conn.SetReadLimit(h.opts.MaxFrameSize)
	// read deadline 只做 dead-peer 偵測, idle close 由 writePump 依 lastActive 判斷
	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout)) }
	extend()
	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				sink.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		extend()
		sink.touch()

		if mt != websocket.TextMessage {
			sink.log.Debug("non-text frame dropped", zap.Int("type", mt))
			continue
		}
		h.dispatch(ctx, sink, userID, limiter, raw)
	}
}

func (h *ChatWebsocketHandler) dispatch(ctx context.Context, sink *connSink, userID string, limiter *rate.Limiter, raw []byte) {
	in, err := domain.DecodeInbound(raw)
	if err != nil {
		sink.log.Warn("malformed frame dropped", zap.Error(err))
		return
	}

	switch cmd := in.(type) {
	case domain.ChatMessageCommand:
		if !limiter.Allow() {
			h.reply(sink, domain.ErrorEnvelope("rate_limited", rateLimitedDetail, cmd.ThreadID))
			sink.log.Debug("chat_message rate limited")
			return
		}
		sent, err := h.messages.SendMessage(ctx, userID, Target{ThreadID: cmd.ThreadID}, cmd.Message)
		if err != nil {
			h.reply(sink, domain.ErrorEnvelope(errprocess.Code(err), err.Error(), cmd.ThreadID))
			return
		}
		h.reply(sink, domain.MessageAckEnvelope(sent.Message, sent.Sender))
	default:
		sink.log.Debug("unknown frame type ignored", zap.String("type", string(in.Kind())))
	}
}

// reply goes to the originating connection only
func (h *ChatWebsocketHandler) reply(sink *connSink, resp domain.WSResponse) {
	payload, err := resp.Encode()
	if err != nil {
		sink.log.Error("encode reply failed", zap.String("type", string(resp.Type)), zap.Error(err))
		return
	}
	if err := sink.Send(payload); err != nil {
		sink.log.Debug("reply dropped", zap.String("type", string(resp.Type)), zap.Error(err))
	}
}

func (h *ChatWebsocketHandler) writePump(conn wsConn, sink *connSink) {
	ticker := time.NewTicker(h.opts.PingInterval)
	idle := time.NewTimer(h.opts.IdleTimeout)
	defer func() {
		ticker.Stop()
		idle.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload := <-sink.send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				sink.log.Debug("websocket write failed", zap.Error(err))
				_ = sink.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteWait)); err != nil {
				sink.log.Debug("websocket ping failed", zap.Error(err))
				_ = sink.Close()
				return
			}
		case <-idle.C:
			if rest := sink.idleRemaining(h.opts.IdleTimeout); rest > 0 {
				idle.Reset(rest)
				continue
			}
			// idle 視為正常斷線
			sink.log.Info("websocket idle timeout", zap.Duration("idle", h.opts.IdleTimeout))
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "idle timeout")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteWait))
			_ = sink.Close()
			return
		case <-sink.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteWait))
			return
		}
	}
}

// connSink bounded send queue of one connection, implements registry.Sink
type connSink struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       *logger.LogInfo

	// unix nano of the last inbound data frame
	lastActive atomic.Int64
}

func newConnSink(size int) *connSink {
	s := &connSink{
		send: make(chan []byte, size),
		done: make(chan struct{}),
		log:  logger.Log,
	}
	s.touch()
	return s
}

func (s *connSink) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// idleRemaining time left before the connection counts as idle
func (s *connSink) idleRemaining(timeout time.Duration) time.Duration {
	return timeout - time.Since(time.Unix(0, s.lastActive.Load()))
}

// Send never blocks; a full queue means the client is not reading
func (s *connSink) Send(payload []byte) error {
	select {
	case <-s.done:
		return errSinkClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return errSendQueueFull
	}
}

func (s *connSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
