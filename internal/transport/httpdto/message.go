package httpdto

import (
	"time"

	"carelink-chat/internal/domain/message"

	"github.com/google/uuid"
)

type AttachmentDTO struct {
	Key  string `json:"key" binding:"required"`
	Kind string `json:"kind" binding:"required"`
}

type SendMessageRequest struct {
	Content         string         `json:"content"`
	Attachment      *AttachmentDTO `json:"attachment"`
	ClientMessageID string         `json:"client_message_id"`
}

type MessageDTO struct {
	ID              uuid.UUID      `json:"id"`
	ConversationID  uuid.UUID      `json:"conversation_id"`
	SenderID        uuid.UUID      `json:"sender_id"`
	Kind            string         `json:"kind"`
	Content         string         `json:"content"`
	Attachment      *AttachmentDTO `json:"attachment,omitempty"`
	ClientMessageID *string        `json:"client_message_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ReadAt          *time.Time     `json:"read_at,omitempty"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
}

type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}

func (a *AttachmentDTO) ToDomain() *message.Attachment {
	if a == nil {
		return nil
	}
	return &message.Attachment{Key: a.Key, Kind: message.AttachmentKind(a.Kind)}
}

func FromMessage(m message.Message) MessageDTO {
	dto := MessageDTO{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Kind:            string(m.Kind),
		Content:         m.Content,
		ClientMessageID: m.ClientMessageID,
		CreatedAt:       m.CreatedAt,
		ReadAt:          m.ReadAt,
	}
	if m.Attachment != nil {
		dto.Attachment = &AttachmentDTO{Key: m.Attachment.Key, Kind: string(m.Attachment.Kind)}
	}
	return dto
}

func FromMessageSlice(items []message.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(items))
	for _, m := range items {
		out = append(out, FromMessage(m))
	}
	return out
}
