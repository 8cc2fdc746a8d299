package conversation

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table
type Conversation struct {
	ID            uuid.UUID
	AppointmentID *string
	UserLow       uuid.UUID
	UserHigh      uuid.UUID
	ScopeKey      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastMessageAt time.Time

	// Relationships
	Participants []Participant
}

// Participant represents the conversation_participants table
type Participant struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	JoinedAt       time.Time
	LastReadAt     *time.Time
}

// PairKey is the canonical, order-independent identity of a conversation.
type PairKey struct {
	Low   uuid.UUID
	High  uuid.UUID
	Scope string
}

// NewPairKey sorts the two ids so (a,b) and (b,a) map to the same key.
func NewPairKey(a, b uuid.UUID, appointmentID *string) PairKey {
	low, high := a, b
	if bytes.Compare(high[:], low[:]) < 0 {
		low, high = high, low
	}
	return PairKey{Low: low, High: high, Scope: ScopeOf(appointmentID)}
}

// ScopeOf turns an optional appointment id into the stored scope key.
func ScopeOf(appointmentID *string) string {
	if appointmentID == nil {
		return ""
	}
	return strings.TrimSpace(*appointmentID)
}

func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.UserLow == userID {
		return c.UserHigh
	}
	return c.UserLow
}

// Summary is one row of a user's conversation list.
type Summary struct {
	Conversation Conversation
	OtherUserID  uuid.UUID
	LastMessage  *LastMessage
	UnreadCount  int64
}

// LastMessage is the preview of the newest non-deleted message.
type LastMessage struct {
	ID        uuid.UUID
	SenderID  uuid.UUID
	Kind      string
	Content   string
	CreatedAt time.Time
}
