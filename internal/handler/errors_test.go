package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	chat_errors "carelink-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{chat_errors.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
		{fmt.Errorf("%w: content is required", chat_errors.ErrInvalidInput), http.StatusBadRequest, "INVALID_REQUEST"},
		{chat_errors.ErrInvalidParticipants, http.StatusBadRequest, "INVALID_PARTICIPANTS"},
		{chat_errors.ErrNotAParticipant, http.StatusForbidden, "NOT_A_PARTICIPANT"},
		{chat_errors.ErrConversationNotFound, http.StatusNotFound, "CONVERSATION_NOT_FOUND"},
		{chat_errors.ErrMessageNotFound, http.StatusNotFound, "MESSAGE_NOT_FOUND"},
		{chat_errors.ErrTransientStore, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code := HTTPStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
