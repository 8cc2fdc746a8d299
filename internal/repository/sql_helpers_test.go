package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	chat_errors "carelink-chat/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, chat_errors.ErrMessageNotFound))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows, chat_errors.ErrMessageNotFound), chat_errors.ErrMessageNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("scan: %w", pgx.ErrNoRows), chat_errors.ErrConversationNotFound), chat_errors.ErrConversationNotFound)

	for name, err := range map[string]error{
		"deadline":      context.DeadlineExceeded,
		"serialization": &pgconn.PgError{Code: "40001"},
		"shutdown":      &pgconn.PgError{Code: "57P01"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(err, chat_errors.ErrNotFound), chat_errors.ErrTransientStore)
		})
	}

	plain := errors.New("syntax error")
	assert.Equal(t, plain, mapError(plain, chat_errors.ErrNotFound))
	assert.False(t, isTransient(&pgconn.PgError{Code: "23505"}))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("x")))
}
