package domain

import "time"

// MessageEvent published to the message event stream after persistence
type MessageEvent struct {
	EventID    string    `json:"event_id"`
	Message    Message   `json:"message"`
	Recipients []string  `json:"recipients"`
	OccurredAt time.Time `json:"occurred_at"`
}
