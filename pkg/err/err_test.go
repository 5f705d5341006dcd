package errprocess

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusAndCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{domain.ErrThreadNotFound, http.StatusNotFound, "thread_not_found"},
		{fmt.Errorf("history: %w", domain.ErrThreadNotFound), http.StatusNotFound, "thread_not_found"},
		{domain.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
		{domain.ErrEmptyBody, http.StatusBadRequest, "invalid_message"},
		{domain.ErrMessageTooLong, http.StatusBadRequest, "invalid_message"},
		{domain.ErrInvalidThread, http.StatusBadRequest, "invalid_thread"},
		{domain.ErrInvalidCursor, http.StatusBadRequest, "invalid_cursor"},
		{domain.ErrMalformedEnvelope, http.StatusBadRequest, "malformed"},
		{domain.StoreError("append", errors.New("eof")), http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestSet(t *testing.T) {
	err := Set("something failed")
	assert.EqualError(t, err, "something failed")
}
