package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository/postgres"
)

func TestOutboxRepository_Enqueue(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewOutboxRepository(db)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ev := &domain.TransitionEvent{
		ID: "e1", TxID: "t1", SubjectKind: domain.SubjectEquipment, SubjectID: 5,
		Action: domain.ActionAssigned, OldStatus: "available", NewStatus: "assigned", ActorID: 2, Timestamp: now,
	}
	mock.ExpectExec("INSERT INTO transition_events").
		WithArgs("e1", "t1", "equipment", int64(5), "assigned", "available", "assigned", int64(2), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Enqueue(context.Background(), ev))
}

func TestOutboxRepository_ListPending(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewOutboxRepository(db)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	columns := []string{"id", "tx_id", "subject_kind", "subject_id", "action", "old_status", "new_status", "actor_id",
		"occurred_at", "published_at", "attempts", "last_error"}

	mock.ExpectQuery("SELECT (.+) FROM transition_events WHERE published_at IS NULL AND attempts < \\$1 ORDER BY occurred_at ASC, id ASC LIMIT 50").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("e1", "t1", "request", 3, "admin_approved", "pending", "approved", 2, now, nil, 1, "redis down"))

	events, err := repo.ListPending(context.Background(), 50, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Attempts)
	assert.Equal(t, "redis down", *events[0].LastError)
	assert.Nil(t, events[0].PublishedAt)
}

func TestOutboxRepository_Mark(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewOutboxRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Published", func(t *testing.T) {
		mock.ExpectExec("UPDATE transition_events SET attempts = attempts \\+ 1, last_error = \\$1, published_at = \\$2 WHERE id = \\$3").
			WithArgs(nil, now, "e1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.MarkPublished(ctx, "e1", now))
	})

	t.Run("Failed Unknown Event", func(t *testing.T) {
		mock.ExpectExec("UPDATE transition_events SET attempts = attempts \\+ 1, last_error = \\$1 WHERE id = \\$2").
			WithArgs("timeout", "nope").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.MarkFailed(ctx, "nope", "timeout"), domain.ErrNotFound)
	})
}

func TestOutboxRepository_PurgePublished(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewOutboxRepository(db)
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM transition_events WHERE published_at IS NOT NULL AND published_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.PurgePublished(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
