package domain

import "time"

// Presence derived online state of a user
type Presence struct {
	UserID   string     `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`
}

// StatusChange emitted on every Offline<->Online transition
type StatusChange struct {
	Presence
	At time.Time `json:"-"`
}
