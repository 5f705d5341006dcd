package app

import (
	"context"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockThreadRepository Mock ThreadRepository
type MockThreadRepository struct {
	mock.Mock
}

// GetOrCreateThread mock get or create thread
func (m *MockThreadRepository) GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

// GetThread mock find thread by id
func (m *MockThreadRepository) GetThread(ctx context.Context, threadID int64) (*domain.Thread, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

// AppendMessage mock insert msg
func (m *MockThreadRepository) AppendMessage(ctx context.Context, threadID int64, senderID, body string) (*domain.Message, error) {
	args := m.Called(ctx, threadID, senderID, body)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListMessages mock history page
func (m *MockThreadRepository) ListMessages(ctx context.Context, threadID int64, cursor string, limit int) (*domain.MessagePage, error) {
	args := m.Called(ctx, threadID, cursor, limit)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MessagePage), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListThreadsForUser mock threads of user
func (m *MockThreadRepository) ListThreadsForUser(ctx context.Context, userID string) ([]domain.Thread, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

// LastMessage mock last message summary
func (m *MockThreadRepository) LastMessage(ctx context.Context, threadID int64) (*domain.LastMessage, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.LastMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserRepository Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

// AutoMigrate mock migrate
func (m *MockUserRepository) AutoMigrate() error {
	return m.Called().Error(0)
}

// FindByID mock find user
func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByIDs mock find users
func (m *MockUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// Save mock upsert user
func (m *MockUserRepository) Save(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

// MockDeliverer Mock Deliverer
type MockDeliverer struct {
	mock.Mock
}

// DeliverTo mock live push
func (m *MockDeliverer) DeliverTo(ctx context.Context, userID string, payload []byte) error {
	return m.Called(ctx, userID, payload).Error(0)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// PublishMessage mock publish event
func (m *MockEventPublisher) PublishMessage(ctx context.Context, event domain.MessageEvent) error {
	return m.Called(ctx, event).Error(0)
}

// Close mock close
func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

// MockPubSub Mock PubSub
type MockPubSub struct {
	mock.Mock
}

// Publish mock publish
func (m *MockPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return m.Called(ctx, channel, payload).Error(0)
}

// PSubscribe mock subscribe; the handler is kept so tests can feed messages
func (m *MockPubSub) PSubscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	return m.Called(ctx, pattern, handler).Error(0)
}
