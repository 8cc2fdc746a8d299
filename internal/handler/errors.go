package handler

import (
	"errors"
	"net/http"

	"carelink-chat/internal/transport/httpdto"
	chat_errors "carelink-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins.
var errorTable = []errorMapping{
	{chat_errors.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
	{chat_errors.ErrInvalidParticipants, http.StatusBadRequest, "INVALID_PARTICIPANTS"},
	{chat_errors.ErrInvalidInput, http.StatusBadRequest, "INVALID_REQUEST"},
	{chat_errors.ErrNotAParticipant, http.StatusForbidden, "NOT_A_PARTICIPANT"},
	{chat_errors.ErrConversationNotFound, http.StatusNotFound, "CONVERSATION_NOT_FOUND"},
	{chat_errors.ErrMessageNotFound, http.StatusNotFound, "MESSAGE_NOT_FOUND"},
	{chat_errors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{chat_errors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
	{chat_errors.ErrTransientStore, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
	{chat_errors.ErrCreationFailed, http.StatusInternalServerError, "CREATION_FAILED"},
}

// HTTPStatus maps a service error to its status code and error code.
func HTTPStatus(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func writeError(c *gin.Context, err error) {
	status, code := HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && code == "INTERNAL_ERROR" {
		msg = "internal error"
		_ = c.Error(err)
	}
	c.JSON(status, httpdto.NewErrorResponse(msg, code))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
}
