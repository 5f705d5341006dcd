// Package registry owns every live connection of this node, indexed by user and by connection id.
package registry

import (
	"sort"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink write side of one live duplex connection
type Sink interface {
	// Send enqueues payload without blocking; an error means the connection is unusable
	Send(payload []byte) error
	Close() error
}

// Listener receives presence transitions. It is called while the registry lock is held,
// so it must not call back into the Registry.
type Listener interface {
	UserOnline(userID string, at time.Time)
	UserOffline(userID string, at time.Time)
}

// Connection snapshot of a registered connection
type Connection struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	sink      Sink
}

// Send push payload to this connection
func (c Connection) Send(payload []byte) error {
	return c.sink.Send(payload)
}

// Registry connection registry
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]map[string]*Connection // user -> conn id -> conn
	byConn   map[string]*Connection            // conn id -> conn
	listener Listener
	now      func() time.Time
	newID    func() string
}

// Option configure Registry
type Option func(*Registry)

// WithListener set presence listener
func WithListener(l Listener) Option {
	return func(r *Registry) { r.listener = l }
}

// WithClock override time source (tests)
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New create Registry
func New(opts ...Option) *Registry {
	r := &Registry{
		byUser: make(map[string]map[string]*Connection),
		byConn: make(map[string]*Connection),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a connection for userID, multi-device is allowed
func (r *Registry) Register(userID string, sink Sink) (string, error) {
	if userID == "" || sink == nil {
		return "", domain.ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.now()
	conn := &Connection{ID: r.newID(), UserID: userID, CreatedAt: at, sink: sink}
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]*Connection)
		r.byUser[userID] = conns
	}
	conns[conn.ID] = conn
	r.byConn[conn.ID] = conn

	if len(conns) == 1 && r.listener != nil {
		r.listener.UserOnline(userID, at)
	}
	logger.Log.Debug("connection registered",
		zap.String("userID", userID),
		zap.String("connID", conn.ID),
		zap.Int("userConnections", len(conns)))
	return conn.ID, nil
}

// Unregister removes a connection; unknown ids are a no-op. Returns true when removed.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(connID) != nil
}

func (r *Registry) removeLocked(connID string) *Connection {
	conn, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	delete(r.byConn, connID)

	conns := r.byUser[conn.UserID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, conn.UserID)
		if r.listener != nil {
			r.listener.UserOffline(conn.UserID, r.now())
		}
	}
	logger.Log.Debug("connection unregistered",
		zap.String("userID", conn.UserID),
		zap.String("connID", connID),
		zap.Int("userConnections", len(conns)))
	return conn
}

// ConnectionsFor snapshot of the user's connections, oldest first
func (r *Registry) ConnectionsFor(userID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Deliver best-effort push to every connection of userID. A connection whose send fails
// is removed and closed; the others still receive the payload.
func (r *Registry) Deliver(userID string, payload []byte) int {
	delivered := 0
	for _, conn := range r.ConnectionsFor(userID) {
		if err := conn.Send(payload); err != nil {
			logger.Log.Warn("drop connection after failed delivery",
				zap.String("userID", userID),
				zap.String("connID", conn.ID),
				zap.Error(err))
			r.drop(conn.ID)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) drop(connID string) {
	r.mu.Lock()
	conn := r.removeLocked(connID)
	r.mu.Unlock()

	if conn != nil {
		if err := conn.sink.Close(); err != nil {
			logger.Log.Debug("close dropped connection", zap.String("connID", connID), zap.Error(err))
		}
	}
}

// IsOnline user holds at least one live connection
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Count number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// OnlineUsers ids of users with live connections, sorted
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// CloseAll closes every sink; the gateway unregisters each one as its pumps exit
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.byConn))
	for _, c := range r.byConn {
		sinks = append(sinks, c.sink)
	}
	r.mu.RUnlock()

	for _, s := range sinks {
		_ = s.Close()
	}
	logger.Log.Info("closed all connections", zap.Int("count", len(sinks)))
}
