package httpdto

import (
	"time"

	"carelink-chat/internal/domain/conversation"
	"carelink-chat/internal/profile"
	"carelink-chat/internal/services"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type CreateConversationRequest struct {
	ParticipantID string  `json:"participant_id" binding:"required"`
	AppointmentID *string `json:"appointment_id"`
}

type ParticipantDTO struct {
	UserID     uuid.UUID       `json:"user_id"`
	JoinedAt   time.Time       `json:"joined_at"`
	LastReadAt *time.Time      `json:"last_read_at,omitempty"`
	Profile    profile.Profile `json:"profile"`
}

type ConversationDTO struct {
	ID            uuid.UUID        `json:"id"`
	AppointmentID *string          `json:"appointment_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	LastMessageAt time.Time        `json:"last_message_at"`
	Participants  []ParticipantDTO `json:"participants,omitempty"`
	UnreadCount   int64            `json:"unread_count"`
}

type CreateConversationResponse struct {
	Conversation ConversationDTO `json:"conversation"`
	Created      bool            `json:"created"`
}

type LastMessageDTO struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationSummaryDTO struct {
	ID            uuid.UUID       `json:"id"`
	AppointmentID *string         `json:"appointment_id,omitempty"`
	LastMessageAt time.Time       `json:"last_message_at"`
	CreatedAt     time.Time       `json:"created_at"`
	Other         profile.Profile `json:"other"`
	LastMessage   *LastMessageDTO `json:"last_message,omitempty"`
	Unread        bool            `json:"unread"`
	UnreadCount   int64           `json:"unread_count"`
}

type ListConversationsResponse struct {
	Conversations []ConversationSummaryDTO `json:"conversations"`
	Total         int                      `json:"total"`
}

type ContactsResponse struct {
	Contacts []profile.Profile `json:"contacts"`
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:            c.ID,
		AppointmentID: c.AppointmentID,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		LastMessageAt: c.LastMessageAt,
	}
}

func FromConversationView(v services.ConversationView) ConversationDTO {
	dto := FromConversation(v.Conversation)
	dto.UnreadCount = v.UnreadCount
	dto.Participants = lo.Map(v.Participants, func(p services.ParticipantView, _ int) ParticipantDTO {
		return ParticipantDTO{
			UserID:     p.UserID,
			JoinedAt:   p.JoinedAt,
			LastReadAt: p.LastReadAt,
			Profile:    p.Profile,
		}
	})
	return dto
}

func FromConversationList(items []services.ConversationListItem) []ConversationSummaryDTO {
	out := make([]ConversationSummaryDTO, 0, len(items))
	for _, item := range items {
		dto := ConversationSummaryDTO{
			ID:            item.Conversation.ID,
			AppointmentID: item.Conversation.AppointmentID,
			LastMessageAt: item.Conversation.LastMessageAt,
			CreatedAt:     item.Conversation.CreatedAt,
			Other:         item.Other,
			Unread:        item.Unread,
			UnreadCount:   item.UnreadCount,
		}
		if lm := item.LastMessage; lm != nil {
			dto.LastMessage = &LastMessageDTO{
				ID:        lm.ID,
				SenderID:  lm.SenderID,
				Kind:      lm.Kind,
				Content:   lm.Content,
				CreatedAt: lm.CreatedAt,
			}
		}
		out = append(out, dto)
	}
	return out
}
