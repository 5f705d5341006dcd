package repository

import (
	"context"

	"realtime_chat_service/internal/chat/domain"
)

const (
	// DefaultPageSize messages per page when the caller gives none
	DefaultPageSize = 50
	// MaxPageSize upper bound of one page
	MaxPageSize = 200
)

// ThreadRepository thread & message persistence
type ThreadRepository interface {
	// GetOrCreateThread order-independent, concurrent calls converge to one thread
	GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error)
	GetThread(ctx context.Context, threadID int64) (*domain.Thread, error)
	// AppendMessage assigns the next id and bumps Thread.Updated
	AppendMessage(ctx context.Context, threadID int64, senderID, body string) (*domain.Message, error)
	// ListMessages ascending by id, after the cursor position
	ListMessages(ctx context.Context, threadID int64, cursor string, limit int) (*domain.MessagePage, error)
	// ListThreadsForUser most recently active first, with last message summary
	ListThreadsForUser(ctx context.Context, userID string) ([]domain.Thread, error)
	LastMessage(ctx context.Context, threadID int64) (*domain.LastMessage, error)
}

// ClampPageSize normalizes a requested page size
func ClampPageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func validatePair(userA, userB string) (string, string, error) {
	if userA == "" || userB == "" || userA == userB {
		return "", "", domain.ErrInvalidThread
	}
	first, second := domain.CanonicalPair(userA, userB)
	return first, second, nil
}
