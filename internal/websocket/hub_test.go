package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	return hub
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not apply the request")
	}
}

func TestHub_BroadcastReachesSubscribersOnly(t *testing.T) {
	hub := runHub(t)
	topic := events.ConversationTopic(uuid.New())
	sub := NewClient(nil, uuid.New())
	other := NewClient(nil, uuid.New())
	hub.Register(sub)
	hub.Register(other)

	wait(t, hub.Subscribe(sub, topic))
	assert.Equal(t, 1, hub.SubscriberCount(topic))
	assert.True(t, hub.Subscribed(sub, topic))

	hub.Broadcast(topic, []byte(`{"event_type":"message.new"}`))

	select {
	case raw := <-sub.Send:
		var f events.Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		assert.Equal(t, events.FrameEvent, f.Type)
		assert.Equal(t, topic, f.Topic)
		assert.JSONEq(t, `{"event_type":"message.new"}`, string(f.Event))
	default:
		t.Fatal("subscriber got nothing")
	}
	assert.Empty(t, other.Send)

	wait(t, hub.Unsubscribe(sub, topic))
	assert.Zero(t, hub.SubscriberCount(topic))
	hub.Broadcast(topic, []byte(`{}`))
	assert.Empty(t, sub.Send)
}

func TestHub_UnregisterDropsSubscriptions(t *testing.T) {
	hub := runHub(t)
	topic := events.UserTopic(uuid.New())
	c := NewClient(nil, uuid.New())
	hub.Register(c)
	wait(t, hub.Subscribe(c, topic))

	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.SessionCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.SubscriberCount(topic))
	_, open := <-c.Send
	assert.False(t, open)

	wait(t, hub.Subscribe(c, topic))
	assert.Zero(t, hub.SubscriberCount(topic), "a departed client is not resubscribed")
}

func TestClient_SendMessageDropsWhenFull(t *testing.T) {
	c := NewClient(nil, uuid.New())
	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.SendMessage([]byte("x")))
	}
	assert.False(t, c.SendMessage([]byte("overflow")))
}

type gateFunc func(ctx context.Context, userID, conversationID uuid.UUID) error

func (f gateFunc) CanSubscribeConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return f(ctx, userID, conversationID)
}

func TestChannelAuthorizer(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	member := uuid.New()
	missing := uuid.New()
	broken := uuid.New()

	a := NewChannelAuthorizer(gateFunc(func(_ context.Context, _ uuid.UUID, conversationID uuid.UUID) error {
		switch conversationID {
		case member:
			return nil
		case missing:
			return chat_errors.ErrConversationNotFound
		case broken:
			return chat_errors.ErrTransientStore
		}
		return chat_errors.ErrNotAParticipant
	}))

	cases := []struct {
		name    string
		channel string
		allowed bool
		wantErr bool
	}{
		{"own user topic", events.UserTopic(user), true, false},
		{"foreign user topic", events.UserTopic(uuid.New()), false, false},
		{"member conversation", events.ConversationTopic(member), true, false},
		{"non member conversation", events.ConversationTopic(uuid.New()), false, false},
		{"missing conversation", events.ConversationTopic(missing), false, false},
		{"store failure", events.ConversationTopic(broken), false, true},
		{"unknown scope", "channel:appointment:" + uuid.NewString(), false, false},
		{"garbage", "*", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := a.CanSubscribe(ctx, user, tc.channel)
			assert.Equal(t, tc.allowed, ok)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type recordingSubscriber struct {
	patterns []string
	deliver  [][2]string
}

func (s *recordingSubscriber) Subscribe(_ context.Context, patterns []string, handler events.Handler) error {
	s.patterns = patterns
	for _, d := range s.deliver {
		handler(d[0], []byte(d[1]))
	}
	return nil
}

func TestRedisBridgeAndLocalPublisher(t *testing.T) {
	hub := runHub(t)
	topic := events.ConversationTopic(uuid.New())
	c := NewClient(nil, uuid.New())
	hub.Register(c)
	wait(t, hub.Subscribe(c, topic))

	sub := &recordingSubscriber{deliver: [][2]string{{topic, `{"n":1}`}}}
	require.NoError(t, NewRedisBridge(sub, hub, nil).Run(context.Background()))
	assert.Equal(t, []string{events.ChannelPattern}, sub.patterns)

	require.NoError(t, NewLocalPublisher(hub).Publish(context.Background(), topic, []byte(`{"n":2}`)))
	assert.Len(t, c.Send, 2)
}
