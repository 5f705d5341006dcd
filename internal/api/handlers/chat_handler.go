package handlers

import (
	"context"
	"strconv"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ThreadService thread queries of the REST surface
type ThreadService interface {
	ListThreads(ctx context.Context, userID string) ([]app.ThreadView, error)
	CreateThread(ctx context.Context, userID, otherID string) (*app.ThreadView, error)
	History(ctx context.Context, userID string, threadID int64, cursor string, limit int) (*domain.MessagePage, error)
}

// PresenceService presence lookup
type PresenceService interface {
	Status(ctx context.Context, userID string) domain.Presence
}

// ChatHandler 处理聊天相关的 HTTP 请求
type ChatHandler struct {
	threads  ThreadService
	messages app.MessageSender
	presence PresenceService
}

// NewChatHandler create ChatHandler
func NewChatHandler(threads ThreadService, messages app.MessageSender, presence PresenceService) *ChatHandler {
	return &ChatHandler{threads: threads, messages: messages, presence: presence}
}

// CreateThreadRequest body of POST /api/chat/threads/
type CreateThreadRequest struct {
	UserID string `json:"user_id"`
}

// SendMessageRequest body of POST /api/chat/threads/:id/messages/
type SendMessageRequest struct {
	Message string `json:"message"`
}

// ErrorResponse error body
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func fail(c *fiber.Ctx, err error) error {
	status := errprocess.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.Log.Error("chat request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Code: errprocess.Code(err)})
}

func threadIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrThreadNotFound
	}
	return id, nil
}

// ListThreads 取得自己的對話
// @Summary List threads
// @Description Threads of the caller, most recently active first
// @Tags Chat
// @Produce json
// @Success 200 {array} app.ThreadView
// @Failure 401 {object} ErrorResponse
// @Router /api/chat/threads/ [get]
func (h *ChatHandler) ListThreads(c *fiber.Ctx) error {
	views, err := h.threads.ListThreads(c.UserContext(), middlewares.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(views)
}

// CreateThread 建立或取得與對方的對話
// @Summary Get or create thread
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body CreateThreadRequest true "other user"
// @Success 201 {object} app.ThreadView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/chat/threads/ [post]
func (h *ChatHandler) CreateThread(c *fiber.Ctx) error {
	var req CreateThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request", Code: "invalid_request"})
	}
	view, err := h.threads.CreateThread(c.UserContext(), middlewares.UserID(c), req.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// ListMessages 訊息歷史
// @Summary Thread history
// @Tags Chat
// @Produce json
// @Param id path int true "thread id"
// @Param cursor query string false "cursor from the previous page"
// @Param limit query int false "page size"
// @Success 200 {object} domain.MessagePage
// @Failure 404 {object} ErrorResponse
// @Router /api/chat/threads/{id}/messages/ [get]
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	threadID, err := threadIDParam(c)
	if err != nil {
		return fail(c, err)
	}
	page, err := h.threads.History(c.UserContext(), middlewares.UserID(c), threadID, c.Query("cursor"), c.QueryInt("limit", 0))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

// SendMessage 透過 REST 發送訊息, same fan-out as the websocket
// @Summary Send message
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path int true "thread id"
// @Param request body SendMessageRequest true "message"
// @Success 201 {object} domain.MessagePayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/chat/threads/{id}/messages/ [post]
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	threadID, err := threadIDParam(c)
	if err != nil {
		return fail(c, err)
	}
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request", Code: "invalid_request"})
	}
	sent, err := h.messages.SendMessage(c.UserContext(), middlewares.UserID(c), app.Target{ThreadID: threadID}, req.Message)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(domain.NewMessagePayload(sent.Message, sent.Sender))
}

// Presence 使用者上線狀態
// @Summary User presence
// @Tags Chat
// @Produce json
// @Param id path string true "user id"
// @Success 200 {object} domain.Presence
// @Router /api/chat/users/{id}/presence [get]
func (h *ChatHandler) Presence(c *fiber.Ctx) error {
	return c.JSON(h.presence.Status(c.UserContext(), c.Params("id")))
}
