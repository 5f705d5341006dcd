package errprocess

import (
	"errors"
	"net/http"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

var table = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{domain.ErrThreadNotFound, http.StatusNotFound, "thread_not_found"},
	{domain.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{domain.ErrInvalidMessage, http.StatusBadRequest, "invalid_message"},
	{domain.ErrInvalidThread, http.StatusBadRequest, "invalid_thread"},
	{domain.ErrInvalidCursor, http.StatusBadRequest, "invalid_cursor"},
	{domain.ErrMalformedEnvelope, http.StatusBadRequest, "malformed"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// HTTPStatus status code for a domain error, 500 when unknown
func HTTPStatus(err error) int {
	for _, e := range table {
		if errors.Is(err, e.target) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// Code wire error code for a domain error
func Code(err error) string {
	for _, e := range table {
		if errors.Is(err, e.target) {
			return e.code
		}
	}
	return "internal"
}
