package domain

import (
	"encoding/base64"
	"strconv"
)

// EncodeCursor opaque cursor pointing after message id
func EncodeCursor(afterID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(afterID, 10)))
}

// DecodeCursor "" means start of the thread
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrInvalidCursor
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id < 0 {
		return 0, ErrInvalidCursor
	}
	return id, nil
}
