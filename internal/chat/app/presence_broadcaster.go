package app

import (
	"context"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// PresenceBroadcaster pushes user_status to everyone sharing a thread with the user
type PresenceBroadcaster struct {
	threads   repository.ThreadRepository
	deliverer Deliverer
	timeout   time.Duration
}

// NewPresenceBroadcaster create PresenceBroadcaster
func NewPresenceBroadcaster(threads repository.ThreadRepository, deliverer Deliverer) *PresenceBroadcaster {
	return &PresenceBroadcaster{threads: threads, deliverer: deliverer, timeout: 5 * time.Second}
}

// Notify presence.Notifier; failures are logged and dropped
func (b *PresenceBroadcaster) Notify(ctx context.Context, change domain.StatusChange) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	peers, err := b.peers(ctx, change.UserID)
	if err != nil {
		logger.Log.Warn("presence peers lookup failed", zap.String("userID", change.UserID), zap.Error(err))
		return
	}
	if len(peers) == 0 {
		return
	}

	payload, err := domain.UserStatusEnvelope(change.Presence).Encode()
	if err != nil {
		logger.Log.Error("encode user_status failed", zap.String("userID", change.UserID), zap.Error(err))
		return
	}
	for _, peer := range peers {
		if err := b.deliverer.DeliverTo(ctx, peer, payload); err != nil {
			logger.Log.Debug("user_status delivery failed", zap.String("peer", peer), zap.Error(err))
		}
	}
}

func (b *PresenceBroadcaster) peers(ctx context.Context, userID string) ([]string, error) {
	threads, err := b.threads.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(threads))
	out := make([]string, 0, len(threads))
	for i := range threads {
		peer := threads[i].OtherParticipant(userID)
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		out = append(out, peer)
	}
	return out, nil
}
