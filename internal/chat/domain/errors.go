package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated no or invalid identity, terminal for the connection attempt
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrThreadNotFound thread missing or caller is not a participant
	ErrThreadNotFound = errors.New("thread not found")
	// ErrInvalidMessage empty or oversized body
	ErrInvalidMessage = errors.New("invalid message")
	// ErrEmptyBody body blank after trimming
	ErrEmptyBody = fmt.Errorf("empty body: %w", ErrInvalidMessage)
	// ErrMessageTooLong body over the configured limit
	ErrMessageTooLong = fmt.Errorf("message too long: %w", ErrInvalidMessage)
	// ErrInvalidThread thread requires two distinct users
	ErrInvalidThread = errors.New("invalid thread")
	// ErrUserNotFound recipient does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrDeliveryFailed live push failed, never surfaced to the sender
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrStoreUnavailable persistence layer down
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidCursor pagination cursor could not be decoded
	ErrInvalidCursor = errors.New("invalid cursor")
)

// StoreError wraps a driver error as ErrStoreUnavailable
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
