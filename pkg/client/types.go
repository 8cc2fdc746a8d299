package client

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Kind        string    `json:"kind"`
}

type Participant struct {
	UserID     uuid.UUID  `json:"user_id"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
	Profile    Profile    `json:"profile"`
}

type Conversation struct {
	ID            uuid.UUID     `json:"id"`
	AppointmentID *string       `json:"appointment_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	LastMessageAt time.Time     `json:"last_message_at"`
	Participants  []Participant `json:"participants,omitempty"`
	UnreadCount   int64         `json:"unread_count"`
}

type LastMessage struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one entry of the caller's conversation list.
type ConversationSummary struct {
	ID            uuid.UUID    `json:"id"`
	AppointmentID *string      `json:"appointment_id,omitempty"`
	LastMessageAt time.Time    `json:"last_message_at"`
	CreatedAt     time.Time    `json:"created_at"`
	Other         Profile      `json:"other"`
	LastMessage   *LastMessage `json:"last_message,omitempty"`
	Unread        bool         `json:"unread"`
	UnreadCount   int64        `json:"unread_count"`
}

type Attachment struct {
	Key  string `json:"key"`
	Kind string `json:"kind"`
}

type Message struct {
	ID              uuid.UUID   `json:"id"`
	ConversationID  uuid.UUID   `json:"conversation_id"`
	SenderID        uuid.UUID   `json:"sender_id"`
	Kind            string      `json:"kind"`
	Content         string      `json:"content"`
	Attachment      *Attachment `json:"attachment,omitempty"`
	ClientMessageID *string     `json:"client_message_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	ReadAt          *time.Time  `json:"read_at,omitempty"`
}

type SendMessageRequest struct {
	Content         string      `json:"content"`
	Attachment      *Attachment `json:"attachment,omitempty"`
	ClientMessageID string      `json:"client_message_id,omitempty"`
}

type PresignRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
}

type PresignedUpload struct {
	Key       string            `json:"key"`
	UploadURL string            `json:"upload_url"`
	FileURL   string            `json:"file_url"`
	Headers   map[string]string `json:"headers,omitempty"`
}
