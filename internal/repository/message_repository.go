package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	chat_errors "carelink-chat/pkg/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

var messageColumns = []string{
	"id", "conversation_id", "sender_id", "kind::text", "content",
	"attachment_key", "attachment_kind::text", "client_message_id",
	"created_at", "updated_at", "read_at", "deleted_at",
}

func scanMessage(row pgx.Row) (message.Message, error) {
	var (
		m              message.Message
		kind           string
		attachmentKey  *string
		attachmentKind *string
	)
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &kind, &m.Content,
		&attachmentKey, &attachmentKind, &m.ClientMessageID,
		&m.CreatedAt, &m.UpdatedAt, &m.ReadAt, &m.DeletedAt,
	)
	if err != nil {
		return message.Message{}, err
	}
	m.Kind = message.Kind(kind)
	if attachmentKey != nil {
		m.Attachment = &message.Attachment{Key: *attachmentKey}
		if attachmentKind != nil {
			m.Attachment.Kind = message.AttachmentKind(*attachmentKind)
		}
	}
	return m, nil
}

func insertMessage(ctx context.Context, db DBTX, m message.Message) error {
	var attachmentKey, attachmentKind *string
	if m.Attachment != nil {
		key, kind := m.Attachment.Key, string(m.Attachment.Kind)
		attachmentKey, attachmentKind = &key, &kind
	}
	_, err := db.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, sender_id, kind, content, attachment_key, attachment_kind, client_message_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4::message_kind, $5, $6, $7::attachment_kind, $8, $9, $10)
    `, m.ID, m.ConversationID, m.SenderID, string(m.Kind), m.Content, attachmentKey, attachmentKind, m.ClientMessageID, m.CreatedAt, m.UpdatedAt)
	return err
}

// Append serializes writers on the conversation row so created_at is strictly increasing.
func (r *PostgresMessageRepository) Append(ctx context.Context, m message.Message, evt outbox.OutboxEvent) (message.Message, bool, error) {
	var (
		stored  message.Message
		created bool
	)
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, m.ConversationID).Scan(&locked); err != nil {
			return mapError(err, chat_errors.ErrConversationNotFound)
		}

		var member bool
		if err := tx.QueryRow(ctx, `
            SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)
        `, m.ConversationID, m.SenderID).Scan(&member); err != nil {
			return mapError(err, chat_errors.ErrConversationNotFound)
		}
		if !member {
			return chat_errors.ErrNotAParticipant
		}

		if m.ClientMessageID != nil {
			query, args, err := psql.Select(messageColumns...).
				From("messages").
				Where(sq.Eq{"conversation_id": m.ConversationID, "sender_id": m.SenderID, "client_message_id": *m.ClientMessageID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build sql query: %v", err)
			}
			existing, err := scanMessage(tx.QueryRow(ctx, query, args...))
			if err == nil {
				stored = existing
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return mapError(err, chat_errors.ErrMessageNotFound)
			}
		}

		if err := tx.QueryRow(ctx, `
            SELECT GREATEST(
                clock_timestamp(),
                COALESCE((SELECT MAX(created_at) FROM messages WHERE conversation_id = $1), '-infinity'::timestamptz) + interval '1 microsecond'
            )
        `, m.ConversationID).Scan(&m.CreatedAt); err != nil {
			return mapError(err, chat_errors.ErrConversationNotFound)
		}
		m.UpdatedAt = m.CreatedAt

		if err := insertMessage(ctx, tx, m); err != nil {
			return mapError(err, chat_errors.ErrConversationNotFound)
		}
		evt.CreatedAt = m.CreatedAt
		evt.NextAttemptAt = m.CreatedAt
		if err := insertOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		stored, created = m, true
		return nil
	})
	if err != nil {
		return message.Message{}, false, mapError(err, chat_errors.ErrConversationNotFound)
	}
	return stored, created, nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	query, args, err := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return message.Message{}, fmt.Errorf("failed to build sql query: %v", err)
	}
	m, err := scanMessage(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return message.Message{}, mapError(err, chat_errors.ErrMessageNotFound)
	}
	return m, nil
}

func (r *PostgresMessageRepository) List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]message.Message, error) {
	query, args, err := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %v", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, chat_errors.ErrConversationNotFound)
	}
	defer rows.Close()

	messages := make([]message.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, chat_errors.ErrConversationNotFound)
	}
	return messages, nil
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error) {
	query, args, err := psql.Update("messages").
		Set("read_at", at).
		Where(sq.Eq{"conversation_id": conversationID, "read_at": nil, "deleted_at": nil}).
		Where(sq.NotEq{"sender_id": readerID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sql query: %v", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, chat_errors.ErrConversationNotFound)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id, senderID uuid.UUID, at time.Time) (uuid.UUID, error) {
	var conversationID uuid.UUID
	err := r.db.QueryRow(ctx, `
        UPDATE messages SET deleted_at = $3, updated_at = $3
        WHERE id = $1 AND sender_id = $2 AND deleted_at IS NULL
        RETURNING conversation_id
    `, id, senderID, at).Scan(&conversationID)
	if err != nil {
		return uuid.Nil, mapError(err, chat_errors.ErrMessageNotFound)
	}
	return conversationID, nil
}

func (r *PostgresMessageRepository) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID, "read_at": nil, "deleted_at": nil}).
		Where(sq.NotEq{"sender_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sql query: %v", err)
	}
	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(err, chat_errors.ErrConversationNotFound)
	}
	return n, nil
}
