// Package presence derives online/offline state from connection registry transitions.
package presence

import (
	"context"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Notifier receives status changes in transition order
type Notifier func(ctx context.Context, change domain.StatusChange)

// Mirror optional durable copy of last_seen (Redis), read only when no in-memory record exists
type Mirror interface {
	Save(ctx context.Context, p domain.Presence) error
	Load(ctx context.Context, userID string) (*domain.Presence, error)
}

type record struct {
	online   bool
	lastSeen *time.Time
}

// Tracker per-user presence state machine: Offline(last_seen) -> Online -> Offline(last_seen')
type Tracker struct {
	mu      sync.Mutex
	records map[string]*record
	queue   []domain.StatusChange
	signal  chan struct{}

	notify        Notifier
	mirror        Mirror
	mirrorTimeout time.Duration
}

// NewTracker create Tracker; notify and mirror may be nil
func NewTracker(notify Notifier, mirror Mirror) *Tracker {
	return &Tracker{
		records:       make(map[string]*record),
		signal:        make(chan struct{}, 1),
		notify:        notify,
		mirror:        mirror,
		mirrorTimeout: 2 * time.Second,
	}
}

// UserOnline implements registry.Listener
func (t *Tracker) UserOnline(userID string, at time.Time) {
	t.mu.Lock()
	rec, ok := t.records[userID]
	if !ok {
		rec = &record{}
		t.records[userID] = rec
	}
	if rec.online {
		t.mu.Unlock()
		return
	}
	rec.online = true
	t.enqueueLocked(domain.StatusChange{
		Presence: domain.Presence{UserID: userID, IsOnline: true},
		At:       at,
	})
	t.mu.Unlock()
}

// UserOffline implements registry.Listener
func (t *Tracker) UserOffline(userID string, at time.Time) {
	t.mu.Lock()
	rec, ok := t.records[userID]
	if !ok {
		rec = &record{}
		t.records[userID] = rec
	}
	if ok && !rec.online {
		t.mu.Unlock()
		return
	}
	// last_seen 不可倒退
	if rec.lastSeen != nil && at.Before(*rec.lastSeen) {
		at = *rec.lastSeen
	}
	seen := at
	rec.online = false
	rec.lastSeen = &seen
	t.enqueueLocked(domain.StatusChange{
		Presence: domain.Presence{UserID: userID, IsOnline: false, LastSeen: &seen},
		At:       at,
	})
	t.mu.Unlock()
}

func (t *Tracker) enqueueLocked(change domain.StatusChange) {
	t.queue = append(t.queue, change)
	select {
	case t.signal <- struct{}{}:
	default:
	}
}

// Status current presence of userID
func (t *Tracker) Status(ctx context.Context, userID string) domain.Presence {
	t.mu.Lock()
	rec, ok := t.records[userID]
	var p domain.Presence
	if ok {
		p = domain.Presence{UserID: userID, IsOnline: rec.online}
		if !rec.online && rec.lastSeen != nil {
			seen := *rec.lastSeen
			p.LastSeen = &seen
		}
	}
	t.mu.Unlock()

	if ok || t.mirror == nil {
		if !ok {
			p.UserID = userID
		}
		return p
	}

	ctx, cancel := context.WithTimeout(ctx, t.mirrorTimeout)
	defer cancel()
	stored, err := t.mirror.Load(ctx, userID)
	if err != nil {
		logger.Log.Warn("presence mirror load failed", zap.String("userID", userID), zap.Error(err))
	}
	if err != nil || stored == nil {
		return domain.Presence{UserID: userID}
	}
	return domain.Presence{UserID: userID, LastSeen: stored.LastSeen}
}

// Run dispatches queued status changes until ctx is done
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.signal:
		}

		t.mu.Lock()
		batch := t.queue
		t.queue = nil
		t.mu.Unlock()

		for _, change := range batch {
			t.dispatch(ctx, change)
		}
	}
}

func (t *Tracker) dispatch(ctx context.Context, change domain.StatusChange) {
	logger.Log.Debug("presence change",
		zap.String("userID", change.UserID),
		zap.Bool("online", change.IsOnline))

	if t.mirror != nil && !change.IsOnline {
		mctx, cancel := context.WithTimeout(ctx, t.mirrorTimeout)
		if err := t.mirror.Save(mctx, change.Presence); err != nil {
			logger.Log.Warn("presence mirror save failed", zap.String("userID", change.UserID), zap.Error(err))
		}
		cancel()
	}
	if t.notify != nil {
		t.notify(ctx, change)
	}
}
