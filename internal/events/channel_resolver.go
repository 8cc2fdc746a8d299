package events

import (
	"fmt"

	"carelink-chat/internal/domain/outbox"
	"carelink-chat/pkg/events"
)

// ChannelResolver determines which Redis channel an outbox event is published to
type ChannelResolver interface {
	ResolveChannel(e outbox.OutboxEvent) (string, error)
}

// AggregateChannelResolver routes by aggregate type: conversation events go to the
// conversation topic, user events to the user topic.
type AggregateChannelResolver struct{}

func NewAggregateChannelResolver() *AggregateChannelResolver {
	return &AggregateChannelResolver{}
}

func (r *AggregateChannelResolver) ResolveChannel(e outbox.OutboxEvent) (string, error) {
	if e.AggregateID == "" {
		return "", fmt.Errorf("outbox event %s has no aggregate id", e.ID)
	}
	switch e.AggregateType {
	case events.AggregateConversation:
		return events.ConversationChannelPrefix + e.AggregateID, nil
	case events.AggregateUser:
		return events.UserChannelPrefix + e.AggregateID, nil
	default:
		return "", fmt.Errorf("no channel for aggregate type %q", e.AggregateType)
	}
}
