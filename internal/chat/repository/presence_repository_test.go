package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPresenceStore Mock database.RedisRepository[domain.Presence]
type MockPresenceStore struct {
	mock.Mock
}

func (m *MockPresenceStore) Set(ctx context.Context, key string, value domain.Presence, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockPresenceStore) Get(ctx context.Context, key string) (domain.Presence, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.Presence), args.Error(1)
}

func TestPresenceRepository(t *testing.T) {
	ctx := context.Background()
	seen := time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC)
	p := domain.Presence{UserID: "alice", LastSeen: &seen}

	store := new(MockPresenceStore)
	store.On("Set", ctx, "chat:presence:alice", p, time.Hour).Return(nil)
	store.On("Get", ctx, "chat:presence:alice").Return(p, nil)
	store.On("Get", ctx, "chat:presence:bob").Return(domain.Presence{}, database.ErrRedisNil)
	store.On("Get", ctx, "chat:presence:carol").Return(domain.Presence{}, errors.New("i/o timeout"))

	repo := NewPresenceRepository(store, time.Hour)
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, &p, got)

	got, err = repo.Load(ctx, "bob")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.Load(ctx, "carol")
	assert.Error(t, err)
	store.AssertExpectations(t)
}

func TestPresenceRepository_NegativeTTL(t *testing.T) {
	ctx := context.Background()
	store := new(MockPresenceStore)
	store.On("Set", ctx, "chat:presence:alice", mock.Anything, time.Duration(0)).Return(nil)

	require.NoError(t, NewPresenceRepository(store, -time.Second).Save(ctx, domain.Presence{UserID: "alice"}))
	store.AssertExpectations(t)
}
