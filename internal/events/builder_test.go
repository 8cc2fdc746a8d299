package events

import (
	"encoding/json"
	"testing"
	"time"

	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	"carelink-chat/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageNew(t *testing.T) {
	now := time.Now().UTC()
	clientID := "tmp-7"
	m := message.Message{ID: uuid.New(), ConversationID: uuid.New(), SenderID: uuid.New(), ClientMessageID: &clientID}

	evt, err := MessageNew(m, now)
	require.NoError(t, err)
	assert.Equal(t, string(events.EventMessageNew), evt.EventType)
	assert.Equal(t, outbox.StatusPending, evt.Status)
	assert.Equal(t, now, evt.NextAttemptAt)

	var p events.MessagePayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, m.ID, p.MessageID)
	assert.Equal(t, clientID, p.ClientMessageID)

	channel, err := NewAggregateChannelResolver().ResolveChannel(evt)
	require.NoError(t, err)
	assert.Equal(t, events.ConversationTopic(m.ConversationID), channel)
}

func TestParticipantAdded_RoutesToUserTopic(t *testing.T) {
	conv, user := uuid.New(), uuid.New()
	evt, err := ParticipantAdded(conv, user, uuid.New(), time.Now())
	require.NoError(t, err)

	channel, err := NewAggregateChannelResolver().ResolveChannel(evt)
	require.NoError(t, err)
	assert.Equal(t, events.UserTopic(user), channel)
}

func TestResolveChannel_Errors(t *testing.T) {
	r := NewAggregateChannelResolver()
	_, err := r.ResolveChannel(outbox.OutboxEvent{AggregateType: events.AggregateConversation})
	assert.Error(t, err)
	_, err = r.ResolveChannel(outbox.OutboxEvent{AggregateType: "call", AggregateID: "x"})
	assert.Error(t, err)
}
