package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carelink-chat/internal/redis"
	"carelink-chat/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	result *redis.RateLimitResult
	err    error
	calls  int
}

func (s *stubLimiter) AllowMessage(context.Context, string) (*redis.RateLimitResult, error) {
	s.calls++
	return s.result, s.err
}

func newEngine(auth *services.AuthService, limiter MessageLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.POST("/send", AuthMiddleware(auth), MessageRateLimitMiddleware(limiter, nil), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func send(t *testing.T, r http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService("mw-secret")
	r := newEngine(auth, nil)

	w := send(t, r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	token, err := auth.IssueAccessToken(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, send(t, r, token).Code)
}

func TestMessageRateLimitMiddleware(t *testing.T) {
	auth := services.NewAuthService("mw-secret")
	token, err := auth.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	t.Run("rejects over quota", func(t *testing.T) {
		limiter := &stubLimiter{result: &redis.RateLimitResult{Allowed: false, Limit: 30, ResetIn: 12 * time.Second}}
		w := send(t, newEngine(auth, limiter), token)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "RATE_LIMITED")
		assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "12", w.Header().Get("X-RateLimit-Reset"))
		assert.Equal(t, "12", w.Header().Get("Retry-After"))
	})

	t.Run("allows within quota", func(t *testing.T) {
		limiter := &stubLimiter{result: &redis.RateLimitResult{Allowed: true, Limit: 30, Remaining: 29}}
		w := send(t, newEngine(auth, limiter), token)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "29", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, 1, limiter.calls)
	})

	t.Run("fails open", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		assert.Equal(t, http.StatusCreated, send(t, newEngine(auth, limiter), token).Code)
	})
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := newEngine(services.NewAuthService("mw-secret"), nil)
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(nil))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/public", func(c *gin.Context) {
		_ = c.Error(errors.New("upstream said no")).SetType(gin.ErrorTypePublic)
		c.Status(http.StatusBadGateway)
	})
	r.GET("/private", func(c *gin.Context) { _ = c.Error(errors.New("pq: secret detail")) })
	r.GET("/written", func(c *gin.Context) {
		_ = c.Error(errors.New("logged only"))
		c.JSON(http.StatusConflict, gin.H{"kept": true})
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal error","code":"INTERNAL_ERROR"}`, w.Body.String())

	w = get("/public")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "upstream said no")

	w = get("/private")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	w = get("/written")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"kept":true}`, w.Body.String())
}
