package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
)

type pairKey struct {
	first, second string
}

// memoryThreadRepository single-process store, one mutex serializes every write
type memoryThreadRepository struct {
	mu         sync.RWMutex
	threadSeq  int64
	messageSeq int64
	threads    map[int64]*domain.Thread
	byPair     map[pairKey]int64
	messages   map[int64][]domain.Message
	now        func() time.Time
}

// NewMemoryThreadRepository create in-memory ThreadRepository (tests, local dev)
func NewMemoryThreadRepository() ThreadRepository {
	return newMemoryThreadRepository(time.Now)
}

func newMemoryThreadRepository(now func() time.Time) *memoryThreadRepository {
	return &memoryThreadRepository{
		threads:  make(map[int64]*domain.Thread),
		byPair:   make(map[pairKey]int64),
		messages: make(map[int64][]domain.Message),
		now:      now,
	}
}

func (r *memoryThreadRepository) GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error) {
	first, second, err := validatePair(userA, userB)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{first, second}
	if id, ok := r.byPair[key]; ok {
		return r.copyThreadLocked(id), nil
	}
	r.threadSeq++
	t := &domain.Thread{
		ID:           r.threadSeq,
		FirstPerson:  first,
		SecondPerson: second,
		Updated:      r.now().UTC(),
	}
	r.threads[t.ID] = t
	r.byPair[key] = t.ID
	return r.copyThreadLocked(t.ID), nil
}

func (r *memoryThreadRepository) GetThread(ctx context.Context, threadID int64) (*domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.threads[threadID]; !ok {
		return nil, domain.ErrThreadNotFound
	}
	return r.copyThreadLocked(threadID), nil
}

func (r *memoryThreadRepository) AppendMessage(ctx context.Context, threadID int64, senderID, body string) (*domain.Message, error) {
	text, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[threadID]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}

	ts := r.now().UTC()
	// timestamp 與 id 同方向遞增
	if msgs := r.messages[threadID]; len(msgs) > 0 && ts.Before(msgs[len(msgs)-1].Timestamp) {
		ts = msgs[len(msgs)-1].Timestamp
	}
	r.messageSeq++
	msg := domain.Message{
		ID:        r.messageSeq,
		ThreadID:  threadID,
		SenderID:  senderID,
		Body:      text,
		Timestamp: ts,
	}
	r.messages[threadID] = append(r.messages[threadID], msg)
	if ts.After(t.Updated) {
		t.Updated = ts
	}
	return &msg, nil
}

func (r *memoryThreadRepository) ListMessages(ctx context.Context, threadID int64, cursor string, limit int) (*domain.MessagePage, error) {
	after, err := domain.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = ClampPageSize(limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.threads[threadID]; !ok {
		return nil, domain.ErrThreadNotFound
	}
	msgs := r.messages[threadID]
	start := sort.Search(len(msgs), func(i int) bool { return msgs[i].ID > after })
	end := start + limit
	if end > len(msgs) {
		end = len(msgs)
	}

	page := &domain.MessagePage{Messages: make([]domain.Message, end-start)}
	copy(page.Messages, msgs[start:end])
	if end < len(msgs) && end > start {
		page.NextCursor = domain.EncodeCursor(msgs[end-1].ID)
	}
	return page, nil
}

func (r *memoryThreadRepository) ListThreadsForUser(ctx context.Context, userID string) ([]domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Thread, 0)
	for id, t := range r.threads {
		if t.HasParticipant(userID) {
			out = append(out, *r.copyThreadLocked(id))
		}
	}
	sortThreads(out)
	return out, nil
}

func (r *memoryThreadRepository) LastMessage(ctx context.Context, threadID int64) (*domain.LastMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.threads[threadID]; !ok {
		return nil, domain.ErrThreadNotFound
	}
	return r.lastLocked(threadID), nil
}

func (r *memoryThreadRepository) lastLocked(threadID int64) *domain.LastMessage {
	msgs := r.messages[threadID]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1].Summary()
}

func (r *memoryThreadRepository) copyThreadLocked(id int64) *domain.Thread {
	t := *r.threads[id]
	t.LastMessage = r.lastLocked(id)
	return &t
}

// sortThreads updated desc, newer id first on ties
func sortThreads(threads []domain.Thread) {
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].Updated.Equal(threads[j].Updated) {
			return threads[i].ID > threads[j].ID
		}
		return threads[i].Updated.After(threads[j].Updated)
	})
}
