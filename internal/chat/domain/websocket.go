package domain

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// EnvelopeType websocket frame "type"
type EnvelopeType string

const (
	// ChatMessage inbound: client sends a chat message
	ChatMessage EnvelopeType = "chat_message"
	// NewMessage outbound: message pushed to a recipient
	NewMessage EnvelopeType = "new_message"
	// UserStatus outbound: peer went online / offline
	UserStatus EnvelopeType = "user_status"
	// MessageAck outbound: persisted message returned to the sending connection
	MessageAck EnvelopeType = "message_ack"
	// Error outbound: request rejected
	Error EnvelopeType = "error"
)

// ErrMalformedEnvelope inbound frame could not be decoded
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Inbound closed set of decoded client frames
type Inbound interface {
	Kind() EnvelopeType
}

// ChatMessageCommand decoded chat_message
type ChatMessageCommand struct {
	ThreadID int64
	Message  string
}

// Kind implements Inbound
func (ChatMessageCommand) Kind() EnvelopeType { return ChatMessage }

// UnknownCommand any type the server does not handle, ignored by the gateway
type UnknownCommand struct {
	Type string
}

// Kind implements Inbound
func (u UnknownCommand) Kind() EnvelopeType { return EnvelopeType(u.Type) }

// WSRequest raw inbound websocket frame
type WSRequest struct {
	Type     string          `json:"type"`
	ThreadID json.RawMessage `json:"thread_id"`
	Message  string          `json:"message"`
}

// DecodeInbound decodes a text frame into a tagged variant; unknown types are not an error
func DecodeInbound(raw []byte) (Inbound, error) {
	var req WSRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, ErrMalformedEnvelope
	}

	switch EnvelopeType(req.Type) {
	case ChatMessage:
		threadID, err := parseThreadID(req.ThreadID)
		if err != nil {
			return nil, err
		}
		return ChatMessageCommand{ThreadID: threadID, Message: req.Message}, nil
	default:
		return UnknownCommand{Type: req.Type}, nil
	}
}

// thread_id 接受數字或數字字串
func parseThreadID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, ErrMalformedEnvelope
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, ErrMalformedEnvelope
}

// WSResponse outbound websocket frame
type WSResponse struct {
	Type EnvelopeType `json:"type"`
	Data interface{}  `json:"data"`
}

// UserPayload user block inside new_message
type UserPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IsBot       bool   `json:"is_bot"`
}

// MessagePayload data of new_message / message_ack
type MessagePayload struct {
	ID        int64       `json:"id"`
	ThreadID  int64       `json:"thread_id"`
	User      UserPayload `json:"user"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// StatusPayload data of user_status
type StatusPayload struct {
	UserID   string     `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`
}

// ErrorPayload data of error
type ErrorPayload struct {
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	ThreadID int64  `json:"thread_id,omitempty"`
}

// NewMessagePayload builds the wire form of a persisted message
func NewMessagePayload(msg *Message, sender *User) MessagePayload {
	user := UserPayload{ID: msg.SenderID}
	if sender != nil {
		user = UserPayload{
			ID:          sender.ID,
			Username:    sender.Username,
			DisplayName: sender.DisplayName,
			IsBot:       sender.IsBot,
		}
	}
	return MessagePayload{
		ID:        msg.ID,
		ThreadID:  msg.ThreadID,
		User:      user,
		Message:   msg.Body,
		Timestamp: msg.Timestamp,
	}
}

// NewMessageEnvelope new_message frame
func NewMessageEnvelope(msg *Message, sender *User) WSResponse {
	return WSResponse{Type: NewMessage, Data: NewMessagePayload(msg, sender)}
}

// MessageAckEnvelope message_ack frame
func MessageAckEnvelope(msg *Message, sender *User) WSResponse {
	return WSResponse{Type: MessageAck, Data: NewMessagePayload(msg, sender)}
}

// UserStatusEnvelope user_status frame
func UserStatusEnvelope(p Presence) WSResponse {
	return WSResponse{Type: UserStatus, Data: StatusPayload{
		UserID:   p.UserID,
		IsOnline: p.IsOnline,
		LastSeen: p.LastSeen,
	}}
}

// ErrorEnvelope error frame
func ErrorEnvelope(code, detail string, threadID int64) WSResponse {
	return WSResponse{Type: Error, Data: ErrorPayload{Code: code, Detail: detail, ThreadID: threadID}}
}

// Encode marshal the frame as a text payload
func (r WSResponse) Encode() ([]byte, error) {
	return json.Marshal(r)
}
