package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
)

const outboxTable = "transition_events"

var outboxColumns = []string{
	"id", "tx_id", "subject_kind", "subject_id", "action", "old_status", "new_status", "actor_id",
	"occurred_at", "published_at", "attempts", "last_error",
}

type outboxRepository struct {
	q querier
}

func NewOutboxRepository(q querier) repository.OutboxRepository {
	return &outboxRepository{q: q}
}

func (r *outboxRepository) Enqueue(ctx context.Context, ev *domain.TransitionEvent) error {
	query, args, err := psql.Insert(outboxTable).
		Columns(outboxColumns[:9]...).
		Values(ev.ID, ev.TxID, ev.SubjectKind, ev.SubjectID, ev.Action, ev.OldStatus, ev.NewStatus, ev.ActorID, ev.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert event: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return classify(err)
	}
	return nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.TransitionEvent, error) {
	b := psql.Select(outboxColumns...).
		From(outboxTable).
		Where(sq.Eq{"published_at": nil}).
		Where(sq.Lt{"attempts": maxAttempts}).
		OrderBy("occurred_at ASC", "id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select pending events: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var events []domain.TransitionEvent
	for rows.Next() {
		var (
			ev          domain.TransitionEvent
			publishedAt sql.NullTime
			lastError   sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.TxID, &ev.SubjectKind, &ev.SubjectID, &ev.Action, &ev.OldStatus,
			&ev.NewStatus, &ev.ActorID, &ev.Timestamp, &publishedAt, &ev.Attempts, &lastError); err != nil {
			return nil, err
		}
		ev.PublishedAt = nullTime(publishedAt)
		ev.LastError = nullString(lastError)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.mark(ctx, id, map[string]any{
		"published_at": at,
		"attempts":     sq.Expr("attempts + 1"),
		"last_error":   nil,
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.mark(ctx, id, map[string]any{
		"attempts":   sq.Expr("attempts + 1"),
		"last_error": reason,
	})
}

func (r *outboxRepository) mark(ctx context.Context, id string, set map[string]any) error {
	query, args, err := psql.Update(outboxTable).SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update event: %w", err)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *outboxRepository) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := psql.Delete(outboxTable).
		Where(sq.NotEq{"published_at": nil}).
		Where(sq.Lt{"published_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge events: %w", err)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}
