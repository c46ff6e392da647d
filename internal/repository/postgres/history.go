package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
)

const historyTable = "history_entries"

var historyColumns = []string{
	"id", "subject_kind", "subject_id", "actor_id", "action", "old_state", "new_state", "notes", "metadata", "created_at",
}

// historyRepository only inserts and selects; the table is never updated.
type historyRepository struct {
	q querier
}

func NewHistoryRepository(q querier) repository.HistoryRepository {
	return &historyRepository{q: q}
}

func (r *historyRepository) Append(ctx context.Context, e *domain.HistoryEntry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	query, args, err := psql.Insert(historyTable).
		Columns(historyColumns[1:]...).
		Values(e.SubjectKind, e.SubjectID, e.ActorID, e.Action, e.OldState, e.NewState, e.Notes, string(meta), e.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert history: %w", err)
	}
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&e.ID); err != nil {
		return classify(err)
	}
	return nil
}

func (r *historyRepository) List(ctx context.Context, q repository.HistoryQuery) ([]domain.HistoryEntry, error) {
	dir, cmp := "ASC", ">"
	if q.Order == domain.NewestFirst {
		dir, cmp = "DESC", "<"
	}

	b := psql.Select(historyColumns...).
		From(historyTable).
		Where(sq.Eq{"subject_kind": q.SubjectKind, "subject_id": q.SubjectID}).
		OrderBy("created_at "+dir, "id "+dir)
	if q.After != nil {
		b = b.Where(sq.Expr("(created_at, id) "+cmp+" (?, ?)", q.After.CreatedAt, q.After.ID))
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select history: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e                   domain.HistoryEntry
			oldState, newState  sql.NullString
			notes               sql.NullString
			meta                []byte
		)
		if err := rows.Scan(&e.ID, &e.SubjectKind, &e.SubjectID, &e.ActorID, &e.Action,
			&oldState, &newState, &notes, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.OldState = nullString(oldState)
		e.NewState = nullString(newState)
		e.Notes = nullString(notes)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
