package app

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxMessageLength runes per message when config gives none
const DefaultMaxMessageLength = 4000

// Deliverer pushes an encoded envelope to every live connection of a user (best effort)
type Deliverer interface {
	DeliverTo(ctx context.Context, userID string, payload []byte) error
}

// Target thread id, or recipient id for get-or-create
type Target struct {
	ThreadID    int64
	RecipientID string
}

// SentMessage persisted message and its resolved sender
type SentMessage struct {
	Message *domain.Message
	Sender  *domain.User
}

// MessageUseCase 負責處理聊天訊息: persist then fan out
type MessageUseCase struct {
	threads   repository.ThreadRepository
	users     repository.UserRepository
	deliverer Deliverer
	events    repository.EventPublisher
	locks     *pkg.StripedMutex
	maxLength int
	now       func() time.Time

	// bot auto-reply, optional
	bot        BotResponder
	background sync.WaitGroup
}

// NewMessageUseCase init message use case; events may be nil
func NewMessageUseCase(
	threads repository.ThreadRepository,
	users repository.UserRepository,
	deliverer Deliverer,
	events repository.EventPublisher,
	maxLength int,
) *MessageUseCase {
	if events == nil {
		events = repository.NewNopEventPublisher()
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &MessageUseCase{
		threads:   threads,
		users:     users,
		deliverer: deliverer,
		events:    events,
		locks:     pkg.NewStripedMutex(256),
		maxLength: maxLength,
		now:       time.Now,
	}
}

// SendMessage validate, persist, deliver to the other participant's live connections.
// The returned error only reflects validation and persistence; delivery is best effort.
func (uc *MessageUseCase) SendMessage(ctx context.Context, senderID string, target Target, body string) (*SentMessage, error) {
	if senderID == "" {
		return nil, domain.ErrUnauthenticated
	}
	text, err := uc.validateBody(body)
	if err != nil {
		return nil, err
	}

	thread, err := uc.resolveThread(ctx, senderID, target)
	if err != nil {
		return nil, err
	}
	// 非參與者一律回 not found, 不洩漏 thread 是否存在
	if !thread.HasParticipant(senderID) {
		return nil, domain.ErrThreadNotFound
	}

	sender := uc.lookupSender(ctx, senderID)

	// persist 與 live delivery 在同一把 thread lock 內, 推送順序 = id 順序
	unlock := uc.locks.Lock(thread.ID)
	msg, err := uc.threads.AppendMessage(ctx, thread.ID, senderID, text)
	if err != nil {
		unlock()
		return nil, err
	}

	recipients := make([]string, 0, 1)
	for _, p := range thread.Participants() {
		if p != senderID {
			recipients = append(recipients, p)
		}
	}

	if payload, err := domain.NewMessageEnvelope(msg, sender).Encode(); err != nil {
		logger.Log.Error("encode new_message failed", zap.Int64("messageID", msg.ID), zap.Error(err))
	} else {
		for _, userID := range recipients {
			if err := uc.deliverer.DeliverTo(ctx, userID, payload); err != nil {
				logger.Log.Warn("live delivery failed",
					zap.String("userID", userID),
					zap.Int64("threadID", thread.ID),
					zap.Error(errors.Join(domain.ErrDeliveryFailed, err)))
			}
		}
	}
	unlock()

	uc.publish(ctx, msg, recipients)

	// 對方是 bot 時在背景產生回覆, 不阻塞 sender 的 ack
	if bot := uc.botRecipient(ctx, thread, sender, senderID); bot != nil {
		uc.background.Add(1)
		go uc.replyAsBot(context.WithoutCancel(ctx), thread.ID, bot)
	}
	return &SentMessage{Message: msg, Sender: sender}, nil
}

func (uc *MessageUseCase) validateBody(body string) (string, error) {
	text, err := domain.NormalizeBody(body)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(text) > uc.maxLength {
		return "", domain.ErrMessageTooLong
	}
	return text, nil
}

func (uc *MessageUseCase) resolveThread(ctx context.Context, senderID string, target Target) (*domain.Thread, error) {
	if target.ThreadID > 0 {
		return uc.threads.GetThread(ctx, target.ThreadID)
	}
	if target.RecipientID == "" || target.RecipientID == senderID {
		return nil, domain.ErrInvalidThread
	}
	if _, err := uc.users.FindByID(ctx, target.RecipientID); err != nil {
		return nil, err
	}
	return uc.threads.GetOrCreateThread(ctx, senderID, target.RecipientID)
}

// lookupSender directory miss still yields a payload with the sender id only
func (uc *MessageUseCase) lookupSender(ctx context.Context, senderID string) *domain.User {
	sender, err := uc.users.FindByID(ctx, senderID)
	if err != nil {
		logger.Log.Debug("sender not in user directory", zap.String("userID", senderID), zap.Error(err))
		return nil
	}
	return sender
}

func (uc *MessageUseCase) publish(ctx context.Context, msg *domain.Message, recipients []string) {
	event := domain.MessageEvent{
		EventID:    uuid.New().String(),
		Message:    *msg,
		Recipients: recipients,
		OccurredAt: uc.now().UTC(),
	}
	if err := uc.events.PublishMessage(ctx, event); err != nil {
		logger.Log.Warn("publish message event failed", zap.Int64("messageID", msg.ID), zap.Error(err))
	}
}
