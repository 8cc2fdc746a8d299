//go:generate go run go.uber.org/mock/mockgen -destination=../mocks/mock_participant_cache.go -package=mocks carelink-chat/internal/proxy ParticipantCache

package proxy

import (
	"context"

	"carelink-chat/internal/domain/conversation"
	"carelink-chat/internal/repository"
	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ParticipantCache remembers who belongs to a conversation. Membership never changes
// after creation, so entries only expire.
type ParticipantCache interface {
	GetConversationParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	SetConversationParticipants(ctx context.Context, conversationID uuid.UUID, participantIDs []uuid.UUID) error
}

type AccessControl struct {
	conversationRepo repository.ConversationRepository
	cache            ParticipantCache
	log              *logger.Logger
}

// NewAccessControl builds the participant gate. cache may be nil.
func NewAccessControl(conversationRepo repository.ConversationRepository, cache ParticipantCache, log *logger.Logger) *AccessControl {
	if log == nil {
		log = logger.Nop()
	}
	return &AccessControl{conversationRepo: conversationRepo, cache: cache, log: log}
}

func (a *AccessControl) CanViewConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.ensureParticipant(ctx, conversationID, userID)
}

func (a *AccessControl) CanSubscribeConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.ensureParticipant(ctx, conversationID, userID)
}

func (a *AccessControl) ensureParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return chat_errors.ErrUnauthenticated
	}
	if a.cache != nil {
		ids, err := a.cache.GetConversationParticipants(ctx, conversationID)
		if err != nil {
			a.log.WithContext(ctx).Warnf("participant cache read failed: %v", err)
		}
		if len(ids) > 0 {
			if lo.Contains(ids, userID) {
				return nil
			}
			return chat_errors.ErrNotAParticipant
		}
	}

	c, err := a.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if a.cache != nil {
		ids := lo.Map(c.Participants, func(p conversation.Participant, _ int) uuid.UUID { return p.UserID })
		if err := a.cache.SetConversationParticipants(ctx, conversationID, ids); err != nil {
			a.log.WithContext(ctx).Warnf("participant cache write failed: %v", err)
		}
	}
	if !c.HasParticipant(userID) {
		return chat_errors.ErrNotAParticipant
	}
	return nil
}
