//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_attachment_verifier.go -package=mocks

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/events"
	"carelink-chat/internal/proxy"
	"carelink-chat/internal/repository"
	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultPageSize    = 50
	MaxPageSize        = 200
	maxClientMessageID = 64
)

// AttachmentVerifier confirms an attachment reference points at an uploaded object owned by the sender.
type AttachmentVerifier interface {
	Verify(ctx context.Context, ownerID uuid.UUID, key string) error
}

type MessageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	outbox        repository.OutboxRepository
	access        *proxy.AccessControl
	attachments   AttachmentVerifier
	log           *logger.Logger
	clock         func() time.Time
}

func NewMessageService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	outbox repository.OutboxRepository,
	access *proxy.AccessControl,
	log *logger.Logger,
) *MessageService {
	if log == nil {
		log = logger.Nop()
	}
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		outbox:        outbox,
		access:        access,
		log:           log,
		clock:         time.Now,
	}
}

// WithAttachmentVerifier enables attachment existence checks on append.
func (s *MessageService) WithAttachmentVerifier(v AttachmentVerifier) *MessageService {
	s.attachments = v
	return s
}

type SendInput struct {
	ConversationID  uuid.UUID
	SenderID        uuid.UUID
	Content         string
	Attachment      *message.Attachment
	ClientMessageID string
}

// Append stores a text message. Membership and conversation existence are checked inside the
// write transaction; the parent's last_message_at is moved forward afterwards on a best-effort basis.
func (s *MessageService) Append(ctx context.Context, in SendInput) (message.Message, error) {
	if in.SenderID == uuid.Nil {
		return message.Message{}, chat_errors.ErrUnauthenticated
	}
	content := strings.TrimSpace(in.Content)
	if err := message.Validate(content, in.Attachment); err != nil {
		return message.Message{}, fmt.Errorf("%w: %v", chat_errors.ErrInvalidInput, err)
	}
	clientID := strings.TrimSpace(in.ClientMessageID)
	if len(clientID) > maxClientMessageID {
		return message.Message{}, fmt.Errorf("%w: client_message_id too long", chat_errors.ErrInvalidInput)
	}
	if in.Attachment != nil && s.attachments != nil {
		if err := s.attachments.Verify(ctx, in.SenderID, in.Attachment.Key); err != nil {
			return message.Message{}, err
		}
	}

	now := s.clock().UTC()
	m := message.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Kind:           message.KindText,
		Content:        content,
		Attachment:     in.Attachment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if clientID != "" {
		m.ClientMessageID = &clientID
	}

	evt, err := events.MessageNew(m, now)
	if err != nil {
		return message.Message{}, err
	}
	stored, created, err := s.messages.Append(ctx, m, evt)
	if err != nil {
		return message.Message{}, err
	}
	if !created {
		s.log.WithContext(ctx).Debugf("duplicate client_message_id %s in conversation %s", clientID, in.ConversationID)
		return stored, nil
	}

	if err := s.conversations.TouchLastMessage(ctx, stored.ConversationID, stored.CreatedAt); err != nil {
		s.log.WithContext(ctx).Warnf("update last_message_at for %s failed: %v", stored.ConversationID, err)
	}
	return stored, nil
}

// NormalizePage applies the default and maximum page size.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns live messages oldest first.
func (s *MessageService) List(ctx context.Context, conversationID, requesterID uuid.UUID, limit, offset int) ([]message.Message, error) {
	if err := s.access.CanViewConversation(ctx, requesterID, conversationID); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)
	return s.messages.List(ctx, conversationID, limit, offset)
}

// MarkRead marks every foreign unread message as read and moves the reader's last_read_at.
// Both updates are attempted; a partial failure is repaired by the next call.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	if err := s.access.CanViewConversation(ctx, readerID, conversationID); err != nil {
		return 0, err
	}
	now := s.clock().UTC()

	marked, markErr := s.messages.MarkConversationRead(ctx, conversationID, readerID, now)
	if markErr != nil {
		markErr = fmt.Errorf("mark messages read: %w", markErr)
	}
	lastReadErr := s.conversations.UpdateLastRead(ctx, conversationID, readerID, now)
	if lastReadErr != nil {
		lastReadErr = fmt.Errorf("update last_read_at: %w", lastReadErr)
	}

	if marked > 0 {
		if evt, err := events.MessagesRead(conversationID, readerID, marked, now); err != nil {
			s.log.WithContext(ctx).Errorf("build messages.read event: %v", err)
		} else if err := s.outbox.Create(ctx, evt); err != nil {
			s.log.WithContext(ctx).Warnf("enqueue messages.read for %s failed: %v", conversationID, err)
		}
	}
	return marked, errors.Join(markErr, lastReadErr)
}

// SoftDelete hides the requester's own message. Foreign, missing and already deleted
// messages all report ErrMessageNotFound.
func (s *MessageService) SoftDelete(ctx context.Context, messageID, requesterID uuid.UUID) error {
	if requesterID == uuid.Nil {
		return chat_errors.ErrUnauthenticated
	}
	now := s.clock().UTC()
	conversationID, err := s.messages.SoftDelete(ctx, messageID, requesterID, now)
	if err != nil {
		return err
	}

	evt, err := events.MessageDeleted(conversationID, messageID, requesterID, now)
	if err != nil {
		s.log.WithContext(ctx).Errorf("build message.deleted event: %v", err)
		return nil
	}
	if err := s.outbox.Create(ctx, evt); err != nil {
		s.log.WithContext(ctx).Warnf("enqueue message.deleted for %s failed: %v", messageID, err)
	}
	return nil
}

func (s *MessageService) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	if err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(ctx, conversationID, userID)
}
