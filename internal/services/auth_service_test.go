package services

import (
	"context"
	"testing"
	"time"

	chat_errors "carelink-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Authenticate(t *testing.T) {
	auth := NewAuthService("test-secret")

	t.Run("issued tokens round trip", func(t *testing.T) {
		token, err := auth.IssueAccessToken(patientID)
		require.NoError(t, err)

		userID, sessionID, err := auth.Authenticate(token)
		require.NoError(t, err)
		assert.Equal(t, patientID, userID)
		assert.NotEqual(t, uuid.Nil, sessionID)
	})

	t.Run("rejects bad tokens", func(t *testing.T) {
		other, err := NewAuthService("other-secret").IssueAccessToken(patientID)
		require.NoError(t, err)

		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
			UserID: patientID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
		expiredToken, err := expired.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		badUser := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{UserID: "not-a-uuid"})
		badUserToken, err := badUser.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{UserID: patientID.String()}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		for name, token := range map[string]string{
			"other alg":    hs512,
			"empty":        "",
			"garbage":      "abc.def.ghi",
			"wrong secret": other,
			"expired":      expiredToken,
			"bad user id":  badUserToken,
		} {
			t.Run(name, func(t *testing.T) {
				_, _, err := auth.Authenticate(token)
				assert.ErrorIs(t, err, chat_errors.ErrUnauthenticated)
			})
		}
	})

	t.Run("falls back to sub", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   mentorID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		userID, sessionID, err := auth.Authenticate(token)
		require.NoError(t, err)
		assert.Equal(t, mentorID, userID)
		assert.Equal(t, uuid.Nil, sessionID)
	})
}

func TestUserSessionContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	session := uuid.New()
	ctx := WithUserSessionContext(context.Background(), mentorID, session)
	userID, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, mentorID, userID)
	sessionID, ok := SessionIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, session, sessionID)
}
