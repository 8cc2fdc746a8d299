package message

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Kind distinguishes user-authored messages from generated ones.
type Kind string

const (
	KindText   Kind = "text"
	KindSystem Kind = "system"
)

// AttachmentKind is the media class of an attachment reference.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentVideo    AttachmentKind = "video"
)

const MaxContentRunes = 4000

// ConversationStartedContent is the body of the synthetic first message.
const ConversationStartedContent = "Conversation started"

// Message represents the messages table
type Message struct {
	ID              uuid.UUID
	ConversationID  uuid.UUID
	SenderID        uuid.UUID
	Kind            Kind
	Content         string
	Attachment      *Attachment
	ClientMessageID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ReadAt          *time.Time
	DeletedAt       *time.Time
}

// Attachment references an object uploaded out of band.
type Attachment struct {
	Key  string
	Kind AttachmentKind
}

func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachmentImage, AttachmentDocument, AttachmentAudio, AttachmentVideo:
		return true
	}
	return false
}

// Validate checks content and attachment rules for a user-authored message.
func Validate(content string, attachment *Attachment) error {
	if attachment != nil {
		if strings.TrimSpace(attachment.Key) == "" {
			return fmt.Errorf("attachment key is required")
		}
		if !attachment.Kind.Valid() {
			return fmt.Errorf("unknown attachment kind %q", attachment.Kind)
		}
	}
	if strings.TrimSpace(content) == "" && attachment == nil {
		return fmt.Errorf("content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return fmt.Errorf("content exceeds %d characters", MaxContentRunes)
	}
	return nil
}
