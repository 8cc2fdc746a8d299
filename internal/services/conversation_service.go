package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carelink-chat/internal/domain/conversation"
	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	"carelink-chat/internal/events"
	"carelink-chat/internal/profile"
	"carelink-chat/internal/repository"
	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ProfileResolver is the read side of the participant directory.
type ProfileResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) profile.Profile
	ResolveMany(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]profile.Profile
	Contacts(ctx context.Context, userID uuid.UUID, limit int) []profile.Profile
}

type ConversationService struct {
	repo     repository.ConversationRepository
	messages repository.MessageRepository
	profiles ProfileResolver
	log      *logger.Logger
	clock    func() time.Time
}

func NewConversationService(repo repository.ConversationRepository, messages repository.MessageRepository, profiles ProfileResolver, log *logger.Logger) *ConversationService {
	if log == nil {
		log = logger.Nop()
	}
	return &ConversationService{repo: repo, messages: messages, profiles: profiles, log: log, clock: time.Now}
}

// ParticipantView is a participant decorated with its directory profile.
type ParticipantView struct {
	conversation.Participant
	Profile profile.Profile
}

type ConversationView struct {
	Conversation conversation.Conversation
	Participants []ParticipantView
	UnreadCount  int64
}

type ConversationListItem struct {
	conversation.Summary
	Other  profile.Profile
	Unread bool
}

// FindOrCreate returns the single conversation for the unordered pair and optional
// appointment scope, creating it when absent. created reports whether this call created it.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB uuid.UUID, appointmentID *string) (conversation.Conversation, bool, error) {
	if userA == uuid.Nil || userB == uuid.Nil {
		return conversation.Conversation{}, false, chat_errors.ErrUnauthenticated
	}
	if userA == userB {
		return conversation.Conversation{}, false, chat_errors.ErrInvalidParticipants
	}
	scope := conversation.ScopeOf(appointmentID)

	existing, err := s.repo.FindByPair(ctx, userA, userB, scope)
	if err == nil {
		if err := s.repo.Touch(ctx, existing.ID, s.clock().UTC()); err != nil {
			s.log.WithContext(ctx).Warnf("refresh conversation %s failed: %v", existing.ID, err)
		}
		return existing, false, nil
	}
	if !errors.Is(err, chat_errors.ErrConversationNotFound) {
		return conversation.Conversation{}, false, err
	}

	seed, err := s.newSeed(userA, userB, scope)
	if err != nil {
		return conversation.Conversation{}, false, fmt.Errorf("%w: %v", chat_errors.ErrCreationFailed, err)
	}
	c, created, err := s.repo.CreateIfAbsent(ctx, seed)
	if err != nil {
		return conversation.Conversation{}, false, err
	}
	if created {
		s.log.WithContext(ctx).Infof("conversation %s created for %s and %s", c.ID, userA, userB)
	}
	return c, created, nil
}

func (s *ConversationService) newSeed(userA, userB uuid.UUID, scope string) (repository.ConversationSeed, error) {
	now := s.clock().UTC()
	key := conversation.NewPairKey(userA, userB, &scope)
	c := conversation.Conversation{
		ID:            uuid.New(),
		UserLow:       key.Low,
		UserHigh:      key.High,
		ScopeKey:      key.Scope,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	if scope != "" {
		c.AppointmentID = &scope
	}

	started := message.Message{
		ID:             uuid.New(),
		ConversationID: c.ID,
		SenderID:       userA,
		Kind:           message.KindSystem,
		Content:        message.ConversationStartedContent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var evts []outbox.OutboxEvent
	for _, uid := range []uuid.UUID{userA, userB} {
		e, err := events.ParticipantAdded(c.ID, uid, userA, now)
		if err != nil {
			return repository.ConversationSeed{}, err
		}
		evts = append(evts, e)
	}
	e, err := events.MessageNew(started, now)
	if err != nil {
		return repository.ConversationSeed{}, err
	}
	evts = append(evts, e)

	return repository.ConversationSeed{
		Conversation: c,
		Participants: []conversation.Participant{
			{ConversationID: c.ID, UserID: userA, JoinedAt: now},
			{ConversationID: c.ID, UserID: userB, JoinedAt: now},
		},
		Messages: []message.Message{started},
		Events:   evts,
	}, nil
}

// GetConversation loads the conversation and the requester's unread count concurrently and
// decorates participants with profiles. Unknown profiles become placeholders.
func (s *ConversationService) GetConversation(ctx context.Context, conversationID, requesterID uuid.UUID) (ConversationView, error) {
	if requesterID == uuid.Nil {
		return ConversationView{}, chat_errors.ErrUnauthenticated
	}

	var (
		c      conversation.Conversation
		unread int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c, err = s.repo.GetByID(gctx, conversationID)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = s.messages.UnreadCount(gctx, conversationID, requesterID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ConversationView{}, err
	}
	if !c.HasParticipant(requesterID) {
		return ConversationView{}, chat_errors.ErrNotAParticipant
	}

	ids := lo.Map(c.Participants, func(p conversation.Participant, _ int) uuid.UUID { return p.UserID })
	profiles := s.profiles.ResolveMany(ctx, ids)
	view := ConversationView{Conversation: c, UnreadCount: unread}
	for _, p := range c.Participants {
		pv := ParticipantView{Participant: p, Profile: profiles[p.UserID]}
		if pv.Profile.ID == uuid.Nil {
			pv.Profile = profile.Placeholder(p.UserID)
		}
		view.Participants = append(view.Participants, pv)
	}
	return view, nil
}

// GetUserConversations lists the user's conversations, most recent activity first.
func (s *ConversationService) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]ConversationListItem, error) {
	if userID == uuid.Nil {
		return nil, chat_errors.ErrUnauthenticated
	}
	summaries, err := s.repo.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	others := lo.Map(summaries, func(sm conversation.Summary, _ int) uuid.UUID { return sm.OtherUserID })
	profiles := s.profiles.ResolveMany(ctx, others)

	return lo.Map(summaries, func(sm conversation.Summary, _ int) ConversationListItem {
		other, ok := profiles[sm.OtherUserID]
		if !ok {
			other = profile.Placeholder(sm.OtherUserID)
		}
		return ConversationListItem{Summary: sm, Other: other, Unread: sm.UnreadCount > 0}
	}), nil
}

// Contacts lists directory profiles the user can start a conversation with.
func (s *ConversationService) Contacts(ctx context.Context, userID uuid.UUID, limit int) ([]profile.Profile, error) {
	if userID == uuid.Nil {
		return nil, chat_errors.ErrUnauthenticated
	}
	return s.profiles.Contacts(ctx, userID, limit), nil
}
