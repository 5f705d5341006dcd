package repository

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/database"
)

// PresenceRepository Redis copy of last_seen, survives process restarts
type PresenceRepository struct {
	store database.RedisRepository[domain.Presence]
	ttl   time.Duration
}

// NewPresenceRepository ttl <= 0 keeps records forever
func NewPresenceRepository(store database.RedisRepository[domain.Presence], ttl time.Duration) *PresenceRepository {
	return &PresenceRepository{store: store, ttl: ttl}
}

func presenceKey(userID string) string {
	return "chat:presence:" + userID
}

// Save store presence, online records are stored without last_seen
func (r *PresenceRepository) Save(ctx context.Context, p domain.Presence) error {
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	return r.store.Set(ctx, presenceKey(p.UserID), p, ttl)
}

// Load nil without error when nothing is stored
func (r *PresenceRepository) Load(ctx context.Context, userID string) (*domain.Presence, error) {
	p, err := r.store.Get(ctx, presenceKey(userID))
	if errors.Is(err, database.ErrRedisNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
