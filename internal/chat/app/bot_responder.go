package app

import (
	"context"
	"strings"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const (
	// BotHistorySize messages handed to the responder, oldest first
	BotHistorySize  = 10
	botReplyTimeout = 30 * time.Second
)

// BotResponder generates the reply of a bot participant (e.g. an LLM client).
// history is ascending by id and ends with the message that triggered the reply.
type BotResponder interface {
	Reply(ctx context.Context, bot *domain.User, history []domain.Message) (string, error)
}

// WithBotResponder enable bot auto-reply; nil disables it
func (uc *MessageUseCase) WithBotResponder(r BotResponder) *MessageUseCase {
	uc.bot = r
	return uc
}

// botRecipient the bot in thread that should answer senderID, nil when none
func (uc *MessageUseCase) botRecipient(ctx context.Context, thread *domain.Thread, sender *domain.User, senderID string) *domain.User {
	if uc.bot == nil || (sender != nil && sender.IsBot) {
		return nil
	}
	other := thread.OtherParticipant(senderID)
	if other == "" {
		return nil
	}
	u, err := uc.users.FindByID(ctx, other)
	if err != nil || !u.IsBot {
		return nil
	}
	return u
}

// replyAsBot runs off the request path; the reply goes through SendMessage like any other message
func (uc *MessageUseCase) replyAsBot(ctx context.Context, threadID int64, bot *domain.User) {
	defer uc.background.Done()
	ctx, cancel := context.WithTimeout(ctx, botReplyTimeout)
	defer cancel()
	log := logger.Log.With(zap.String("botID", bot.ID), zap.Int64("threadID", threadID))

	history, err := uc.recentMessages(ctx, threadID, BotHistorySize)
	if err != nil {
		log.Warn("load bot history failed", zap.Error(err))
		return
	}
	text, err := uc.bot.Reply(ctx, bot, history)
	if err != nil {
		log.Warn("bot reply failed", zap.Error(err))
		return
	}
	if strings.TrimSpace(text) == "" {
		log.Debug("bot returned empty reply")
		return
	}
	if _, err := uc.SendMessage(ctx, bot.ID, Target{ThreadID: threadID}, text); err != nil {
		log.Warn("send bot reply failed", zap.Error(err))
	}
}

// recentMessages last n messages of a thread, ascending.
// TODO: add a descending ListMessages variant so long threads are not paged from the start.
func (uc *MessageUseCase) recentMessages(ctx context.Context, threadID int64, n int) ([]domain.Message, error) {
	var tail []domain.Message
	cursor := ""
	for {
		page, err := uc.threads.ListMessages(ctx, threadID, cursor, repository.MaxPageSize)
		if err != nil {
			return nil, err
		}
		tail = append(tail, page.Messages...)
		if len(tail) > n {
			tail = tail[len(tail)-n:]
		}
		if page.NextCursor == "" {
			return tail, nil
		}
		cursor = page.NextCursor
	}
}

// Wait blocks until background bot replies finish; used on shutdown
func (uc *MessageUseCase) Wait() {
	uc.background.Wait()
}
