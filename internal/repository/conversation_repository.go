package repository

import (
	"context"
	"fmt"
	"time"

	"carelink-chat/internal/domain/conversation"
	chat_errors "carelink-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

var conversationColumns = []string{
	"c.id", "c.appointment_id", "c.user_low", "c.user_high", "c.scope_key",
	"c.created_at", "c.updated_at", "c.last_message_at",
}

func scanConversation(row pgx.Row, extra ...any) (conversation.Conversation, error) {
	var c conversation.Conversation
	dest := append([]any{
		&c.ID, &c.AppointmentID, &c.UserLow, &c.UserHigh, &c.ScopeKey,
		&c.CreatedAt, &c.UpdatedAt, &c.LastMessageAt,
	}, extra...)
	err := row.Scan(dest...)
	return c, err
}

func (r *PostgresConversationRepository) FindByPair(ctx context.Context, userA, userB uuid.UUID, scope string) (conversation.Conversation, error) {
	query, args, err := psql.Select(conversationColumns...).
		From("conversations c").
		Join("conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = ?", userA).
		Join("conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = ?", userB).
		Where("c.scope_key = ?", scope).
		OrderBy("c.created_at ASC", "c.id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("failed to build sql query: %v", err)
	}

	c, err := scanConversation(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return conversation.Conversation{}, mapError(err, chat_errors.ErrConversationNotFound)
	}
	if c.Participants, err = r.participants(ctx, r.db, c.ID); err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) CreateIfAbsent(ctx context.Context, seed ConversationSeed) (conversation.Conversation, bool, error) {
	var (
		c        conversation.Conversation
		inserted bool
	)
	in := seed.Conversation

	err := WithTx(ctx, r.db, func(tx DBTX) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO conversations AS c (id, appointment_id, user_low, user_high, scope_key, created_at, updated_at, last_message_at)
            VALUES ($1, $2, $3, $4, $5, $6, $6, $6)
            ON CONFLICT (user_low, user_high, scope_key) DO UPDATE SET updated_at = now()
            RETURNING c.id, c.appointment_id, c.user_low, c.user_high, c.scope_key,
                      c.created_at, c.updated_at, c.last_message_at, (c.xmax = 0) AS inserted
        `, in.ID, in.AppointmentID, in.UserLow, in.UserHigh, in.ScopeKey, in.CreatedAt)

		var err error
		c, err = scanConversation(row, &inserted)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		for _, p := range seed.Participants {
			if _, err := tx.Exec(ctx, `
                INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
                VALUES ($1, $2, $3)
            `, c.ID, p.UserID, p.JoinedAt); err != nil {
				return fmt.Errorf("insert participant: %w", err)
			}
		}
		for _, m := range seed.Messages {
			m.ConversationID = c.ID
			if err := insertMessage(ctx, tx, m); err != nil {
				return fmt.Errorf("insert seed message: %w", err)
			}
		}
		for _, e := range seed.Events {
			if err := insertOutboxEvent(ctx, tx, e); err != nil {
				return fmt.Errorf("insert outbox event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if isTransient(err) {
			return conversation.Conversation{}, false, mapError(err, chat_errors.ErrConversationNotFound)
		}
		return conversation.Conversation{}, false, fmt.Errorf("%w: %v", chat_errors.ErrCreationFailed, err)
	}

	if c.Participants, err = r.participants(ctx, r.db, c.ID); err != nil {
		return conversation.Conversation{}, false, err
	}
	return c, inserted, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	query, args, err := psql.Select(conversationColumns...).
		From("conversations c").
		Where("c.id = ?", id).
		ToSql()
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("failed to build sql query: %v", err)
	}

	c, err := scanConversation(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return conversation.Conversation{}, mapError(err, chat_errors.ErrConversationNotFound)
	}
	if c.Participants, err = r.participants(ctx, r.db, c.ID); err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) participants(ctx context.Context, db DBTX, conversationID uuid.UUID) ([]conversation.Participant, error) {
	rows, err := db.Query(ctx, `
        SELECT conversation_id, user_id, joined_at, last_read_at
        FROM conversation_participants
        WHERE conversation_id = $1
        ORDER BY joined_at ASC, user_id ASC
    `, conversationID)
	if err != nil {
		return nil, mapError(err, chat_errors.ErrConversationNotFound)
	}
	defer rows.Close()

	var out []conversation.Participant
	for rows.Next() {
		var p conversation.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.JoinedAt, &p.LastReadAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)
    `, conversationID, userID).Scan(&ok)
	if err != nil {
		return false, mapError(err, chat_errors.ErrConversationNotFound)
	}
	return ok, nil
}

// GetUserConversations lists the user's conversations with the other participant, a preview
// of the newest live message and the user's unread count, newest activity first.
func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error) {
	columns := append(append([]string{}, conversationColumns...),
		"other.user_id",
		"lm.id", "lm.sender_id", "lm.kind::text", "lm.content", "lm.created_at",
		"(SELECT COUNT(*) FROM messages u WHERE u.conversation_id = c.id AND u.sender_id <> me.user_id AND u.read_at IS NULL AND u.deleted_at IS NULL) AS unread",
	)
	query, args, err := psql.Select(columns...).
		From("conversations c").
		Join("conversation_participants me ON me.conversation_id = c.id AND me.user_id = ?", userID).
		Join("conversation_participants other ON other.conversation_id = c.id AND other.user_id <> ?", userID).
		LeftJoin(`LATERAL (
            SELECT m.id, m.sender_id, m.kind, m.content, m.created_at
            FROM messages m
            WHERE m.conversation_id = c.id AND m.deleted_at IS NULL
            ORDER BY m.created_at DESC, m.id DESC
            LIMIT 1
        ) lm ON true`).
		OrderBy("c.last_message_at DESC", "c.created_at DESC", "c.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %v", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, chat_errors.ErrConversationNotFound)
	}
	defer rows.Close()

	var out []conversation.Summary
	for rows.Next() {
		var (
			s         conversation.Summary
			lmID      *uuid.UUID
			lmSender  *uuid.UUID
			lmKind    *string
			lmContent *string
			lmCreated *time.Time
		)
		s.Conversation, err = scanConversation(rows, &s.OtherUserID, &lmID, &lmSender, &lmKind, &lmContent, &lmCreated, &s.UnreadCount)
		if err != nil {
			return nil, err
		}
		if lmID != nil {
			s.LastMessage = &conversation.LastMessage{ID: *lmID, SenderID: *lmSender, Kind: *lmKind, Content: *lmContent, CreatedAt: *lmCreated}
		}
		s.Conversation.Participants = []conversation.Participant{
			{ConversationID: s.Conversation.ID, UserID: userID},
			{ConversationID: s.Conversation.ID, UserID: s.OtherUserID},
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE conversations SET updated_at = GREATEST(updated_at, $2) WHERE id = $1
    `, id, at)
	if err != nil {
		return mapError(err, chat_errors.ErrConversationNotFound)
	}
	if tag.RowsAffected() == 0 {
		return chat_errors.ErrConversationNotFound
	}
	return nil
}

// TouchLastMessage moves last_message_at forward only.
func (r *PostgresConversationRepository) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE conversations
        SET last_message_at = GREATEST(last_message_at, $2), updated_at = GREATEST(updated_at, $2)
        WHERE id = $1
    `, id, at)
	if err != nil {
		return mapError(err, chat_errors.ErrConversationNotFound)
	}
	if tag.RowsAffected() == 0 {
		return chat_errors.ErrConversationNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) UpdateLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE conversation_participants
        SET last_read_at = GREATEST(COALESCE(last_read_at, $3), $3)
        WHERE conversation_id = $1 AND user_id = $2
    `, conversationID, userID, at)
	if err != nil {
		return mapError(err, chat_errors.ErrConversationNotFound)
	}
	if tag.RowsAffected() == 0 {
		return chat_errors.ErrNotAParticipant
	}
	return nil
}
