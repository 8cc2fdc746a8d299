package events

import (
	"encoding/json"
	"fmt"
	"time"

	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	"carelink-chat/pkg/events"

	"github.com/google/uuid"
)

func newOutboxEvent(eventType events.EventType, aggregateType, aggregateID string, payload any, at time.Time) (outbox.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return outbox.OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return outbox.New(string(eventType), aggregateType, aggregateID, data, at), nil
}

func messagePayload(m message.Message) events.MessagePayload {
	p := events.MessagePayload{
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		SenderID:       m.SenderID,
	}
	if m.ClientMessageID != nil {
		p.ClientMessageID = *m.ClientMessageID
	}
	return p
}

// MessageNew builds the outbox row announcing an inserted message.
func MessageNew(m message.Message, at time.Time) (outbox.OutboxEvent, error) {
	return newOutboxEvent(events.EventMessageNew, events.AggregateConversation, m.ConversationID.String(), messagePayload(m), at)
}

// MessageDeleted builds the outbox row announcing a soft delete.
func MessageDeleted(conversationID, messageID, senderID uuid.UUID, at time.Time) (outbox.OutboxEvent, error) {
	return newOutboxEvent(events.EventMessageDeleted, events.AggregateConversation, conversationID.String(), events.MessagePayload{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderID:       senderID,
	}, at)
}

// MessagesRead builds the outbox row announcing a bulk read.
func MessagesRead(conversationID, readerID uuid.UUID, count int64, at time.Time) (outbox.OutboxEvent, error) {
	return newOutboxEvent(events.EventMessagesRead, events.AggregateConversation, conversationID.String(), events.ReadPayload{
		ConversationID: conversationID,
		ReaderID:       readerID,
		Count:          count,
	}, at)
}

// ParticipantAdded builds the outbox row published on the added user's topic.
func ParticipantAdded(conversationID, userID, addedBy uuid.UUID, at time.Time) (outbox.OutboxEvent, error) {
	return newOutboxEvent(events.EventParticipantAdded, events.AggregateUser, userID.String(), events.ParticipantPayload{
		ConversationID: conversationID,
		UserID:         userID,
		AddedBy:        addedBy,
	}, at)
}
