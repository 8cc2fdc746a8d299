package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carelink-chat/config"
	"carelink-chat/internal/handler"
	"carelink-chat/internal/middleware"
	"carelink-chat/internal/outbox"
	"carelink-chat/internal/profile"
	"carelink-chat/internal/proxy"
	"carelink-chat/internal/redis"
	"carelink-chat/internal/repository/memstore"
	"carelink-chat/internal/server"
	"carelink-chat/internal/services"
	"carelink-chat/internal/websocket"
	"carelink-chat/pkg/client"
	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/events"
	"carelink-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	patientID  = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	mentorID   = uuid.MustParse("22222222-2222-4222-8222-222222222221")
	strangerID = uuid.MustParse("44444444-4444-4444-8444-444444444444")
)

const testSecret = "server-test-secret"

type denyAll struct{}

func (denyAll) AllowMessage(context.Context, string) (*redis.RateLimitResult, error) {
	return &redis.RateLimitResult{Allowed: false, Limit: 1, ResetIn: time.Second}, nil
}

type stack struct {
	srv       *httptest.Server
	auth      *services.AuthService
	processor *outbox.Processor
}

func newStack(t *testing.T, limiter middleware.MessageLimiter) *stack {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db := memstore.New()
	dir := profile.NewStaticDirectory(
		profile.Profile{ID: patientID, DisplayName: "Pat Jordan", Kind: profile.KindPatient},
		profile.Profile{ID: mentorID, DisplayName: "Morgan Lee", Kind: profile.KindMentor},
		profile.Profile{ID: strangerID, DisplayName: "Sam Rivera", Kind: profile.KindPatient},
	)
	l := logger.Nop()
	resolver := profile.NewResolver(dir, nil, l)
	access := proxy.NewAccessControl(db.Conversations(), nil, l)
	auth := services.NewAuthService(testSecret)

	hub := websocket.NewHub()
	go func() { _ = hub.Run(ctx) }()

	cfg := &config.Config{AppPort: "0", AppMode: server.TestMode}
	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(services.NewConversationService(db.Conversations(), db.Messages(), resolver, l)),
		Message:      handler.NewMessageHandler(services.NewMessageService(db.Messages(), db.Conversations(), db.Outbox(), access, l)),
		WebSocket:    websocket.NewHandler(auth, hub, websocket.NewChannelAuthorizer(access), nil, l),
	}, server.RouteOptions{
		Auth:           auth,
		MessageLimiter: limiter,
		Health:         map[string]server.HealthCheck{"store": func(context.Context) error { return nil }},
	})

	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(ts.Close)

	return &stack{
		srv:       ts,
		auth:      auth,
		processor: outbox.NewProcessor(db.Outbox(), websocket.NewLocalPublisher(hub), l, 50, time.Second, 3),
	}
}

func (s *stack) client(t *testing.T, userID uuid.UUID) *client.Client {
	t.Helper()
	token, err := s.auth.IssueAccessToken(userID)
	require.NoError(t, err)
	c := client.New(s.srv.URL, token)
	t.Cleanup(c.Close)
	return c
}

func TestHealthAndPing(t *testing.T) {
	s := newStack(t, nil)
	for _, path := range []string{"/ping", "/health"} {
		resp, err := http.Get(s.srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	s := newStack(t, nil)
	c := client.New(s.srv.URL, "not-a-token")
	defer c.Close()

	_, err := c.ListConversations(context.Background())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.ErrorIs(t, err, chat_errors.ErrUnauthenticated)
}

func TestConversationFlow(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, nil)
	patient := s.client(t, patientID)
	mentor := s.client(t, mentorID)
	stranger := s.client(t, strangerID)

	contacts, err := patient.Contacts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, mentorID, contacts[0].ID)

	conv, created, err := patient.FindOrCreate(ctx, mentorID, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, conv.Participants, 2)

	again, created, err := mentor.FindOrCreate(ctx, patientID, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	_, _, err = patient.FindOrCreate(ctx, patientID, nil)
	assert.ErrorIs(t, err, chat_errors.ErrInvalidParticipants)

	sent, err := patient.SendMessage(ctx, conv.ID, client.SendMessageRequest{Content: "Hello", ClientMessageID: "tmp-1"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", sent.Content)

	_, err = stranger.SendMessage(ctx, conv.ID, client.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, chat_errors.ErrNotAParticipant)
	_, err = stranger.ListMessages(ctx, conv.ID, 0, 0)
	assert.ErrorIs(t, err, chat_errors.ErrNotAParticipant)

	_, err = patient.SendMessage(ctx, conv.ID, client.SendMessageRequest{Content: "  "})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)

	msgs, err := mentor.ListMessages(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Content)

	list, err := mentor.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Unread)
	assert.Equal(t, "Pat Jordan", list[0].Other.DisplayName)

	marked, err := mentor.MarkRead(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	list, err = mentor.ListConversations(ctx)
	require.NoError(t, err)
	assert.False(t, list[0].Unread)

	assert.ErrorIs(t, mentor.DeleteMessage(ctx, sent.ID), chat_errors.ErrMessageNotFound)
	require.NoError(t, patient.DeleteMessage(ctx, sent.ID))
	msgs, err = mentor.ListMessages(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = mentor.GetConversation(ctx, uuid.New())
	assert.ErrorIs(t, err, chat_errors.ErrConversationNotFound)
}

func TestRealtimeDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := newStack(t, nil)
	patient := s.client(t, patientID)
	mentor := s.client(t, mentorID)
	stranger := s.client(t, strangerID)

	conv, _, err := patient.FindOrCreate(ctx, mentorID, nil)
	require.NoError(t, err)
	s.processor.ProcessBatch(ctx)

	stream, err := mentor.Dial(ctx)
	require.NoError(t, err)
	defer stream.Close() //nolint:errcheck // test

	topic := events.ConversationTopic(conv.ID)
	require.NoError(t, stream.Subscribe(ctx, topic))
	require.NoError(t, stream.Subscribe(ctx, events.UserTopic(mentorID)))
	assert.Error(t, stream.Subscribe(ctx, events.UserTopic(patientID)), "another user's topic")

	intruder, err := stranger.Dial(ctx)
	require.NoError(t, err)
	defer intruder.Close() //nolint:errcheck // test
	assert.Error(t, intruder.Subscribe(ctx, topic))

	sent, err := patient.SendMessage(ctx, conv.ID, client.SendMessageRequest{Content: "are you there?"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.processor.ProcessBatch(ctx))

	select {
	case env := <-stream.Events():
		assert.Equal(t, events.EventMessageNew, env.EventType)
		var p events.MessagePayload
		require.NoError(t, env.Decode(&p))
		assert.Equal(t, sent.ID, p.MessageID)
		assert.Equal(t, patientID, p.SenderID)
	case <-ctx.Done():
		t.Fatal("message.new was not delivered")
	}

	require.NoError(t, stream.Unsubscribe(ctx, topic))
	_, err = patient.SendMessage(ctx, conv.ID, client.SendMessageRequest{Content: "second"})
	require.NoError(t, err)
	s.processor.ProcessBatch(ctx)

	select {
	case env := <-stream.Events():
		t.Fatalf("unexpected event after unsubscribe: %s", env.EventType)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMessageRateLimit(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, denyAll{})
	patient := s.client(t, patientID)

	conv, _, err := patient.FindOrCreate(ctx, mentorID, nil)
	require.NoError(t, err)

	_, err = patient.SendMessage(ctx, conv.ID, client.SendMessageRequest{Content: "spam"})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.ErrorIs(t, err, chat_errors.ErrRateLimited)
}
