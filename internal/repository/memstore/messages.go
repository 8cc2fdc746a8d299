package memstore

import (
	"context"
	"time"

	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	chat_errors "carelink-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type messageRepo struct {
	db *DB
}

func (r *messageRepo) Append(ctx context.Context, m message.Message, evt outbox.OutboxEvent) (message.Message, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.conversations[m.ConversationID]
	if !ok {
		return message.Message{}, false, chat_errors.ErrConversationNotFound
	}
	if !c.HasParticipant(m.SenderID) {
		return message.Message{}, false, chat_errors.ErrNotAParticipant
	}

	log := r.db.messages[m.ConversationID]
	if m.ClientMessageID != nil {
		if existing, found := lo.Find(log, func(x *message.Message) bool {
			return x.SenderID == m.SenderID && x.ClientMessageID != nil && *x.ClientMessageID == *m.ClientMessageID
		}); found {
			return *existing, false, nil
		}
	}

	created := r.db.now().UTC()
	for _, x := range log {
		if floor := x.CreatedAt.Add(time.Microsecond); !created.After(x.CreatedAt) {
			created = floor
		}
	}
	m.CreatedAt = created
	m.UpdatedAt = created
	r.db.messages[m.ConversationID] = append(log, &m)

	evt.CreatedAt = created
	evt.NextAttemptAt = created
	r.db.appendOutbox(evt)
	return m, true, nil
}

func (r *messageRepo) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, log := range r.db.messages {
		for _, m := range log {
			if m.ID == id {
				return *m, nil
			}
		}
	}
	return message.Message{}, chat_errors.ErrMessageNotFound
}

func (r *messageRepo) List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]message.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	live := lo.FilterMap(r.db.messages[conversationID], func(m *message.Message, _ int) (message.Message, bool) {
		return *m, m.DeletedAt == nil
	})
	if offset >= len(live) {
		return []message.Message{}, nil
	}
	end := min(offset+limit, len(live))
	return live[offset:end], nil
}

func (r *messageRepo) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for _, m := range r.db.messages[conversationID] {
		if m.SenderID != readerID && m.ReadAt == nil && m.DeletedAt == nil {
			t := at
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) SoftDelete(ctx context.Context, id, senderID uuid.UUID, at time.Time) (uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for convID, log := range r.db.messages {
		for _, m := range log {
			if m.ID == id && m.SenderID == senderID && m.DeletedAt == nil {
				t := at
				m.DeletedAt = &t
				m.UpdatedAt = at
				return convID, nil
			}
		}
	}
	return uuid.Nil, chat_errors.ErrMessageNotFound
}

func (r *messageRepo) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return int64(lo.CountBy(r.db.messages[conversationID], func(m *message.Message) bool {
		return m.SenderID != userID && m.ReadAt == nil && m.DeletedAt == nil
	})), nil
}

type outboxRepo struct {
	db *DB
}

func (r *outboxRepo) Create(ctx context.Context, e outbox.OutboxEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.appendOutbox(e)
	return nil
}

func (r *outboxRepo) GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	pending := lo.FilterMap(r.db.outbox, func(e *outbox.OutboxEvent, _ int) (outbox.OutboxEvent, bool) {
		return *e, e.Status == outbox.StatusPending
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepo) find(id uuid.UUID) (*outbox.OutboxEvent, error) {
	e, ok := lo.Find(r.db.outbox, func(e *outbox.OutboxEvent) bool { return e.ID == id })
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return e, nil
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.Status = outbox.StatusCompleted
	e.ProcessedAt = &at
	e.Error = ""
	return nil
}

func (r *outboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, errMsg string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.RetryCount++
	e.NextAttemptAt = nextAttemptAt
	e.Error = errMsg
	return nil
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.Status = outbox.StatusFailed
	e.Error = errMsg
	return nil
}

func (r *outboxRepo) PurgeCompleted(ctx context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := lo.Reject(r.db.outbox, func(e *outbox.OutboxEvent, _ int) bool {
		return e.Status == outbox.StatusCompleted && e.ProcessedAt != nil && e.ProcessedAt.Before(before)
	})
	purged := int64(len(r.db.outbox) - len(kept))
	r.db.outbox = kept
	return purged, nil
}
