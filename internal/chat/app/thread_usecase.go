package app

import (
	"context"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
)

// ThreadView thread as seen by one participant
type ThreadView struct {
	ID           int64               `json:"id"`
	FirstPerson  string              `json:"first_person"`
	SecondPerson string              `json:"second_person"`
	OtherUser    domain.UserPayload  `json:"other_user"`
	Updated      time.Time           `json:"updated"`
	LastMessage  *domain.LastMessage `json:"last_message"`
}

// ThreadUseCase thread list / create / history for the REST surface
type ThreadUseCase struct {
	threads  repository.ThreadRepository
	users    repository.UserRepository
	pageSize int
}

// NewThreadUseCase pageSize <= 0 uses the store default
func NewThreadUseCase(threads repository.ThreadRepository, users repository.UserRepository, pageSize int) *ThreadUseCase {
	return &ThreadUseCase{threads: threads, users: users, pageSize: pageSize}
}

// ListThreads caller's threads, most recently active first
func (uc *ThreadUseCase) ListThreads(ctx context.Context, userID string) ([]ThreadView, error) {
	threads, err := uc.threads.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	others := make([]string, 0, len(threads))
	for i := range threads {
		others = append(others, threads[i].OtherParticipant(userID))
	}
	users, err := uc.users.FindByIDs(ctx, others)
	if err != nil {
		return nil, err
	}

	views := make([]ThreadView, 0, len(threads))
	for i := range threads {
		views = append(views, newThreadView(&threads[i], userID, users))
	}
	return views, nil
}

// CreateThread get-or-create the thread between userID and otherID
func (uc *ThreadUseCase) CreateThread(ctx context.Context, userID, otherID string) (*ThreadView, error) {
	if otherID == "" || otherID == userID {
		return nil, domain.ErrInvalidThread
	}
	other, err := uc.users.FindByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	thread, err := uc.threads.GetOrCreateThread(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	view := newThreadView(thread, userID, map[string]*domain.User{other.ID: other})
	return &view, nil
}

// History one page of messages; non-participants get ErrThreadNotFound
func (uc *ThreadUseCase) History(ctx context.Context, userID string, threadID int64, cursor string, limit int) (*domain.MessagePage, error) {
	thread, err := uc.threads.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(userID) {
		return nil, domain.ErrThreadNotFound
	}
	if limit <= 0 {
		limit = uc.pageSize
	}
	return uc.threads.ListMessages(ctx, threadID, cursor, limit)
}

func newThreadView(t *domain.Thread, userID string, users map[string]*domain.User) ThreadView {
	otherID := t.OtherParticipant(userID)
	other := domain.UserPayload{ID: otherID}
	if u, ok := users[otherID]; ok {
		other = domain.UserPayload{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, IsBot: u.IsBot}
	}
	return ThreadView{
		ID:           t.ID,
		FirstPerson:  t.FirstPerson,
		SecondPerson: t.SecondPerson,
		OtherUser:    other,
		Updated:      t.Updated,
		LastMessage:  t.LastMessage,
	}
}
