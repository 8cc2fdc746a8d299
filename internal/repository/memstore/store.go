// Package memstore keeps conversations, messages and outbox rows in process memory.
// It backs service tests and the STORE_DRIVER=memory development mode.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"carelink-chat/internal/domain/conversation"
	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	"carelink-chat/internal/repository"
	chat_errors "carelink-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DB is the shared state behind the three repositories.
type DB struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*conversation.Conversation
	pairs         map[conversation.PairKey]uuid.UUID
	messages      map[uuid.UUID][]*message.Message
	outbox        []*outbox.OutboxEvent
	seq           int64
	now           func() time.Time
}

func New() *DB {
	return &DB{
		conversations: make(map[uuid.UUID]*conversation.Conversation),
		pairs:         make(map[conversation.PairKey]uuid.UUID),
		messages:      make(map[uuid.UUID][]*message.Message),
		now:           time.Now,
	}
}

func (db *DB) Conversations() repository.ConversationRepository { return &conversationRepo{db: db} }
func (db *DB) Messages() repository.MessageRepository           { return &messageRepo{db: db} }
func (db *DB) Outbox() repository.OutboxRepository              { return &outboxRepo{db: db} }

// OutboxEvents returns a copy of every outbox row in insertion order.
func (db *DB) OutboxEvents() []outbox.OutboxEvent {
	db.mu.Lock()
	defer db.mu.Unlock()
	return lo.Map(db.outbox, func(e *outbox.OutboxEvent, _ int) outbox.OutboxEvent { return *e })
}

func (db *DB) appendOutbox(e outbox.OutboxEvent) {
	db.seq++
	e.Seq = db.seq
	if e.Status == "" {
		e.Status = outbox.StatusPending
	}
	db.outbox = append(db.outbox, &e)
}

func cloneConversation(c *conversation.Conversation) conversation.Conversation {
	out := *c
	out.Participants = append([]conversation.Participant(nil), c.Participants...)
	return out
}

type conversationRepo struct {
	db *DB
}

func (r *conversationRepo) FindByPair(ctx context.Context, userA, userB uuid.UUID, scope string) (conversation.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	matches := lo.Filter(lo.Values(r.db.conversations), func(c *conversation.Conversation, _ int) bool {
		return c.ScopeKey == scope && c.HasParticipant(userA) && c.HasParticipant(userB)
	})
	if len(matches) == 0 {
		return conversation.Conversation{}, chat_errors.ErrConversationNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return bytes.Compare(matches[i].ID[:], matches[j].ID[:]) < 0
	})
	return cloneConversation(matches[0]), nil
}

func (r *conversationRepo) CreateIfAbsent(ctx context.Context, seed repository.ConversationSeed) (conversation.Conversation, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	in := seed.Conversation
	key := conversation.PairKey{Low: in.UserLow, High: in.UserHigh, Scope: in.ScopeKey}
	if id, ok := r.db.pairs[key]; ok {
		existing := r.db.conversations[id]
		existing.UpdatedAt = r.db.now()
		return cloneConversation(existing), false, nil
	}

	c := in
	c.UpdatedAt = c.CreatedAt
	c.LastMessageAt = c.CreatedAt
	c.Participants = lo.Map(seed.Participants, func(p conversation.Participant, _ int) conversation.Participant {
		p.ConversationID = c.ID
		return p
	})
	r.db.conversations[c.ID] = &c
	r.db.pairs[key] = c.ID
	for _, m := range seed.Messages {
		m := m
		m.ConversationID = c.ID
		r.db.messages[c.ID] = append(r.db.messages[c.ID], &m)
	}
	for _, e := range seed.Events {
		r.db.appendOutbox(e)
	}
	return cloneConversation(&c), true, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.conversations[id]
	if !ok {
		return conversation.Conversation{}, chat_errors.ErrConversationNotFound
	}
	return cloneConversation(c), nil
}

func (r *conversationRepo) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.conversations[conversationID]
	if !ok {
		return false, nil
	}
	return c.HasParticipant(userID), nil
}

func (r *conversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []conversation.Summary
	for _, c := range r.db.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		s := conversation.Summary{Conversation: cloneConversation(c), OtherUserID: c.OtherParticipant(userID)}
		live := lo.Filter(r.db.messages[c.ID], func(m *message.Message, _ int) bool { return m.DeletedAt == nil })
		if len(live) > 0 {
			last := live[len(live)-1]
			s.LastMessage = &conversation.LastMessage{
				ID:        last.ID,
				SenderID:  last.SenderID,
				Kind:      string(last.Kind),
				Content:   last.Content,
				CreatedAt: last.CreatedAt,
			}
		}
		s.UnreadCount = int64(lo.CountBy(live, func(m *message.Message) bool {
			return m.SenderID != userID && m.ReadAt == nil
		}))
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Conversation, out[j].Conversation
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return out, nil
}

func (r *conversationRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.conversations[id]
	if !ok {
		return chat_errors.ErrConversationNotFound
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	return nil
}

func (r *conversationRepo) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.conversations[id]
	if !ok {
		return chat_errors.ErrConversationNotFound
	}
	if at.After(c.LastMessageAt) {
		c.LastMessageAt = at
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	return nil
}

func (r *conversationRepo) UpdateLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.conversations[conversationID]
	if !ok {
		return chat_errors.ErrConversationNotFound
	}
	for i := range c.Participants {
		p := &c.Participants[i]
		if p.UserID != userID {
			continue
		}
		if p.LastReadAt == nil || at.After(*p.LastReadAt) {
			t := at
			p.LastReadAt = &t
		}
		return nil
	}
	return chat_errors.ErrNotAParticipant
}
