package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
	"equiptrack-backend/internal/repository/postgres"
)

func TestHistoryRepository_Append(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewHistoryRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	oldState, newState := "pending", "approved"

	entry := &domain.HistoryEntry{
		SubjectKind: domain.SubjectRequest,
		SubjectID:   3,
		ActorID:     2,
		Action:      domain.ActionAdminApproved,
		OldState:    &oldState,
		NewState:    &newState,
		Metadata:    map[string]string{domain.MetaTxID: "tx-1"},
		CreatedAt:   now,
	}

	mock.ExpectQuery("INSERT INTO history_entries").
		WithArgs("request", int64(3), int64(2), "admin_approved", "pending", "approved", nil, `{"tx_id":"tx-1"}`, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))

	require.NoError(t, repo.Append(ctx, entry))
	assert.Equal(t, int64(100), entry.ID)
}

func TestHistoryRepository_List(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewHistoryRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	columns := []string{"id", "subject_kind", "subject_id", "actor_id", "action", "old_state", "new_state", "notes", "metadata", "created_at"}

	t.Run("First Page", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM history_entries WHERE subject_id = \\$1 AND subject_kind = \\$2 ORDER BY created_at ASC, id ASC LIMIT 2").
			WithArgs(int64(3), "request").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(1, "request", 3, 7, "created", nil, "pending", nil, []byte(`{"tx_id":"a"}`), now).
				AddRow(2, "request", 3, 1, "team_lead_approved", "pending", "pending", "ok", []byte(`{"tx_id":"b"}`), now))

		entries, err := repo.List(ctx, repository.HistoryQuery{SubjectKind: domain.SubjectRequest, SubjectID: 3, Order: domain.OldestFirst, Limit: 2})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Nil(t, entries[0].OldState)
		assert.Equal(t, "b", entries[1].Metadata[domain.MetaTxID])
		assert.Equal(t, "ok", *entries[1].Notes)
	})

	t.Run("Keyset Cursor Newest First", func(t *testing.T) {
		mock.ExpectQuery("WHERE subject_id = \\$1 AND subject_kind = \\$2 AND \\(created_at, id\\) < \\(\\$3, \\$4\\) ORDER BY created_at DESC, id DESC").
			WithArgs(int64(3), "request", now, int64(2)).
			WillReturnRows(sqlmock.NewRows(columns))

		entries, err := repo.List(ctx, repository.HistoryQuery{
			SubjectKind: domain.SubjectRequest, SubjectID: 3, Order: domain.NewestFirst,
			After: &repository.HistoryCursor{CreatedAt: now, ID: 2},
		})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
