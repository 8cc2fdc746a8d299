//go:generate go run go.uber.org/mock/mockgen -source=events.go -destination=../../internal/mocks/mock_events.go -package=mocks

// Package events is the realtime wire contract shared by the gateway and its clients.
// Envelopes carry identifiers only; receivers re-fetch authoritative state over HTTP.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageNew       EventType = "message.new"
	EventMessageDeleted   EventType = "message.deleted"
	EventMessagesRead     EventType = "messages.read"
	EventParticipantAdded EventType = "participant.added"
)

const (
	AggregateConversation = "conversation"
	AggregateUser         = "user"
)

const (
	ConversationChannelPrefix = "channel:conversation:"
	UserChannelPrefix         = "channel:user:"
	ChannelPattern            = "channel:*"
)

// Envelope is the frame published on Redis and forwarded to websocket sessions.
type Envelope struct {
	EventType     EventType       `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// MessagePayload accompanies message.new and message.deleted.
type MessagePayload struct {
	ConversationID  uuid.UUID `json:"conversation_id"`
	MessageID       uuid.UUID `json:"message_id"`
	SenderID        uuid.UUID `json:"sender_id"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
}

// ReadPayload accompanies messages.read.
type ReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	Count          int64     `json:"count"`
}

// ParticipantPayload accompanies participant.added, published on the added user's topic.
type ParticipantPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	AddedBy        uuid.UUID `json:"added_by"`
}

func ConversationTopic(conversationID uuid.UUID) string {
	return ConversationChannelPrefix + conversationID.String()
}

func UserTopic(userID uuid.UUID) string {
	return UserChannelPrefix + userID.String()
}

// TopicKind is the scope of a topic.
type TopicKind int

const (
	TopicUnknown TopicKind = iota
	TopicConversation
	TopicUser
)

// ParseTopic splits a channel name into its scope and id.
func ParseTopic(channel string) (TopicKind, uuid.UUID, error) {
	var kind TopicKind
	var raw string
	switch {
	case strings.HasPrefix(channel, ConversationChannelPrefix):
		kind, raw = TopicConversation, strings.TrimPrefix(channel, ConversationChannelPrefix)
	case strings.HasPrefix(channel, UserChannelPrefix):
		kind, raw = TopicUser, strings.TrimPrefix(channel, UserChannelPrefix)
	default:
		return TopicUnknown, uuid.Nil, fmt.Errorf("unknown topic %q", channel)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return TopicUnknown, uuid.Nil, fmt.Errorf("invalid topic id: %w", err)
	}
	return kind, id, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// ConversationID extracts the conversation id carried by any known payload.
func (e Envelope) ConversationID() (uuid.UUID, error) {
	var ref struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := e.Decode(&ref); err != nil {
		return uuid.Nil, err
	}
	return ref.ConversationID, nil
}

type Handler func(channel string, payload []byte)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler Handler) error
}
