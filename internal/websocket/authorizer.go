package websocket

import (
	"context"
	"errors"

	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/events"

	"github.com/google/uuid"
)

// ConversationGate answers whether a user may follow a conversation.
type ConversationGate interface {
	CanSubscribeConversation(ctx context.Context, userID, conversationID uuid.UUID) error
}

// ChannelAuthorizer handles authorization for WebSocket channel subscriptions
type ChannelAuthorizer struct {
	gate ConversationGate
}

func NewChannelAuthorizer(gate ConversationGate) *ChannelAuthorizer {
	return &ChannelAuthorizer{gate: gate}
}

// CanSubscribe allows a user topic only for its owner and a conversation topic only for
// its participants. Unknown topics are denied.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error) {
	kind, id, err := events.ParseTopic(channel)
	if err != nil {
		return false, nil
	}

	switch kind {
	case events.TopicUser:
		return id == userID, nil
	case events.TopicConversation:
		err := a.gate.CanSubscribeConversation(ctx, userID, id)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, chat_errors.ErrNotAParticipant),
			errors.Is(err, chat_errors.ErrConversationNotFound),
			errors.Is(err, chat_errors.ErrUnauthenticated):
			return false, nil
		default:
			return false, err
		}
	}
	return false, nil
}
