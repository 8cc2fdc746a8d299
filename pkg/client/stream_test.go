package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carelink-chat/pkg/events"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_EventsClosedWhenConnectionDrops(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		env, _ := json.Marshal(events.Envelope{EventType: events.EventParticipantAdded, Payload: json.RawMessage(`{}`)})
		frame, _ := json.Marshal(events.Frame{Type: events.FrameEvent, Topic: "user:x", Event: env})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		_ = conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := New(srv.URL, "token").Dial(ctx)
	require.NoError(t, err)

	select {
	case env, ok := <-s.Events():
		require.True(t, ok)
		assert.Equal(t, events.EventParticipantAdded, env.EventType)
	case <-ctx.Done():
		t.Fatal("no event delivered")
	}
	select {
	case _, ok := <-s.Events():
		assert.False(t, ok, "events closed after the connection ends")
	case <-ctx.Done():
		t.Fatal("events never closed")
	}
	<-s.Done()
	assert.Error(t, s.Err())
	assert.NoError(t, s.Close())
}
