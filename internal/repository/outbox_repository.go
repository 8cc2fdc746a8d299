package repository

import (
	"context"
	"time"

	"carelink-chat/internal/domain/outbox"
	chat_errors "carelink-chat/pkg/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const outboxTable = "outbox_events"

var outboxColumns = []string{
	"seq", "id", "event_type", "aggregate_type", "aggregate_id", "payload", "status::text",
	"retry_count", "COALESCE(error_message, '')", "next_attempt_at", "created_at", "processed_at",
}

type outboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Create(ctx context.Context, event outbox.OutboxEvent) error {
	return insertOutboxEvent(ctx, r.db, event)
}

// insertOutboxEvent is shared with the message and conversation writers so the row lands in
// their transaction.
func insertOutboxEvent(ctx context.Context, db DBTX, e outbox.OutboxEvent) error {
	if e.Status == "" {
		e.Status = outbox.StatusPending
	}
	query, args, err := psql.Insert(outboxTable).
		Columns("id", "event_type", "aggregate_type", "aggregate_id", "payload", "status", "retry_count", "next_attempt_at", "created_at").
		Values(e.ID, e.EventType, e.AggregateType, e.AggregateID, e.Payload, string(e.Status), e.RetryCount, e.NextAttemptAt, e.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, query, args...)
	return mapError(err, chat_errors.ErrNotFound)
}

func scanOutboxEvent(row pgx.CollectableRow) (outbox.OutboxEvent, error) {
	var e outbox.OutboxEvent
	err := row.Scan(&e.Seq, &e.ID, &e.EventType, &e.AggregateType, &e.AggregateID, &e.Payload, &e.Status,
		&e.RetryCount, &e.Error, &e.NextAttemptAt, &e.CreatedAt, &e.ProcessedAt)
	return e, err
}

// GetPending returns PENDING rows by seq. Rows whose next attempt is still in the future are
// included so the processor can stop at them and keep topic order.
func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error) {
	query, args, err := psql.Select(outboxColumns...).
		From(outboxTable).
		Where(sq.Eq{"status": string(outbox.StatusPending)}).
		OrderBy("seq ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, chat_errors.ErrNotFound)
	}
	pending, err := pgx.CollectRows(rows, scanOutboxEvent)
	if err != nil {
		return nil, mapError(err, chat_errors.ErrNotFound)
	}
	return pending, nil
}

func (r *outboxRepository) update(ctx context.Context, id uuid.UUID, set map[string]any) error {
	query, args, err := psql.Update(outboxTable).SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, chat_errors.ErrNotFound)
	}
	if tag.RowsAffected() == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":        string(outbox.StatusCompleted),
		"processed_at":  at,
		"error_message": nil,
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, errMsg string) error {
	return r.update(ctx, id, map[string]any{
		"retry_count":     sq.Expr("retry_count + 1"),
		"next_attempt_at": nextAttemptAt,
		"error_message":   errMsg,
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, map[string]any{
		"status":        string(outbox.StatusFailed),
		"error_message": errMsg,
	})
}

func (r *outboxRepository) PurgeCompleted(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := psql.Delete(outboxTable).
		Where(sq.Eq{"status": string(outbox.StatusCompleted)}).
		Where(sq.Lt{"processed_at": before}).
		ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, chat_errors.ErrNotFound)
	}
	return tag.RowsAffected(), nil
}
