package domain

import (
	"strings"
	"time"
)

// Thread 兩人對話 (unordered pair, FirstPerson < SecondPerson)
type Thread struct {
	ID           int64        `json:"id" bson:"_id"`
	FirstPerson  string       `json:"first_person" bson:"first_person"`
	SecondPerson string       `json:"second_person" bson:"second_person"`
	Updated      time.Time    `json:"updated" bson:"updated"`
	LastMessage  *LastMessage `json:"last_message,omitempty" bson:"-"`
}

// Message 聊天訊息, immutable once persisted
type Message struct {
	ID        int64     `json:"id" bson:"_id"`
	ThreadID  int64     `json:"thread_id" bson:"thread_id"`
	SenderID  string    `json:"sender_id" bson:"sender_id"`
	Body      string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// LastMessage newest message summary of a thread
type LastMessage struct {
	Message   string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	UserID    string    `json:"user_id" bson:"user_id"`
}

// MessagePage one page of thread history, ascending by id
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// CanonicalPair orders two user ids so that (a,b) and (b,a) map to the same thread
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// HasParticipant check user belongs to the thread
func (t *Thread) HasParticipant(userID string) bool {
	return t.FirstPerson == userID || t.SecondPerson == userID
}

// Participants returns both members
func (t *Thread) Participants() []string {
	return []string{t.FirstPerson, t.SecondPerson}
}

// OtherParticipant returns the member that is not userID
func (t *Thread) OtherParticipant(userID string) string {
	if t.FirstPerson == userID {
		return t.SecondPerson
	}
	return t.FirstPerson
}

// Summary converts the message into a last-message projection
func (m *Message) Summary() *LastMessage {
	return &LastMessage{
		Message:   m.Body,
		Timestamp: m.Timestamp,
		UserID:    m.SenderID,
	}
}

// NormalizeBody trims the body and rejects blank text
func NormalizeBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ErrEmptyBody
	}
	return trimmed, nil
}
