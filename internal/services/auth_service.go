package services

import (
	"context"
	"time"

	chat_errors "carelink-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenLeeway     = 30 * time.Second
	defaultTokenTTL = time.Hour
)

// AuthService checks HS256 access tokens minted by the identity service. The caller id comes
// from the user_id claim, falling back to sub.
type AuthService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{
		secret: []byte(jwtSecret),
		ttl:    defaultTokenTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(tokenLeeway),
			jwt.WithIssuedAt(),
		),
	}
}

type AccessClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

func (c AccessClaims) subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// ParseAccessToken reports every failure as ErrUnauthenticated; the reason is not leaked.
func (s *AuthService) ParseAccessToken(raw string) (AccessClaims, error) {
	var claims AccessClaims
	if raw == "" {
		return claims, chat_errors.ErrUnauthenticated
	}
	token, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return AccessClaims{}, chat_errors.ErrUnauthenticated
	}
	return claims, nil
}

// Authenticate returns the caller's user id and, when the token carries one, its session id.
func (s *AuthService) Authenticate(raw string) (userID, sessionID uuid.UUID, err error) {
	claims, err := s.ParseAccessToken(raw)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	userID, err = uuid.Parse(claims.subject())
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, uuid.Nil, chat_errors.ErrUnauthenticated
	}
	if claims.SessionID != "" {
		sessionID, _ = uuid.Parse(claims.SessionID)
	}
	return userID, sessionID, nil
}

// IssueAccessToken signs a token the same way the identity service does. The seed tooling
// and tests use it.
func (s *AuthService) IssueAccessToken(userID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		UserID:    userID.String(),
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}).SignedString(s.secret)
}

type callerKey struct{}

type caller struct {
	userID    uuid.UUID
	sessionID uuid.UUID
}

func WithUserSessionContext(ctx context.Context, userID, sessionID uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey{}, caller{userID: userID, sessionID: sessionID})
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	c, ok := ctx.Value(callerKey{}).(caller)
	return c.userID, ok
}

func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	c, ok := ctx.Value(callerKey{}).(caller)
	return c.sessionID, ok
}
