//go:generate go run go.uber.org/mock/mockgen -destination=../mocks/mock_outbox_repository.go -package=mocks carelink-chat/internal/repository OutboxRepository

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carelink-chat/internal/domain/conversation"
	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
)

// ConversationSeed is everything written atomically when a conversation is created.
type ConversationSeed struct {
	Conversation conversation.Conversation
	Participants []conversation.Participant
	Messages     []message.Message
	Events       []outbox.OutboxEvent
}

type ConversationRepository interface {
	// FindByPair returns the oldest conversation both users participate in for the scope.
	FindByPair(ctx context.Context, userA, userB uuid.UUID, scope string) (conversation.Conversation, error)
	// CreateIfAbsent inserts the seed unless the pair key already exists. created reports
	// whether this call inserted it; on conflict the existing conversation is returned and
	// nothing else from the seed is written.
	CreateIfAbsent(ctx context.Context, seed ConversationSeed) (c conversation.Conversation, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	// Append locks the conversation, verifies membership and inserts m together with evt.
	// A repeated client message id returns the stored message with created=false.
	Append(ctx context.Context, m message.Message, evt outbox.OutboxEvent) (stored message.Message, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]message.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error)
	// SoftDelete only matches the sender's own live message and returns its conversation id.
	SoftDelete(ctx context.Context, id, senderID uuid.UUID, at time.Time) (uuid.UUID, error)
	UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, e outbox.OutboxEvent) error
	GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	// PurgeCompleted deletes COMPLETED rows processed before the cutoff. FAILED rows are kept
	// for inspection.
	PurgeCompleted(ctx context.Context, before time.Time) (int64, error)
}
