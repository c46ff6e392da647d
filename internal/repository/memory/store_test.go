package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
)

func newRequest() *domain.EquipmentRequest {
	return &domain.EquipmentRequest{
		RequesterID:      1,
		EquipmentType:    "laptop",
		Priority:         domain.PriorityMedium,
		Status:           domain.RequestStatusPending,
		TeamLeadApproval: domain.ApprovalUnset,
		AdminApproval:    domain.ApprovalUnset,
	}
}

func TestStore_RunInTxRollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Requests().Create(ctx, newRequest()))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Requests().GetByID(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_RunInTxCommits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	req := newRequest()
	err := s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Requests().Create(ctx, req)
	})
	require.NoError(t, err)

	got, err := s.Requests().GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "laptop", got.EquipmentType)

	got.EquipmentType = "changed"
	again, _ := s.Requests().GetByID(ctx, req.ID)
	assert.Equal(t, "laptop", again.EquipmentType)
}

func TestStore_RunInTxCancelled(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Requests().Create(ctx, newRequest()))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Requests().GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_RunInTxSerializes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Equipment().Create(ctx, &domain.Equipment{SerialNumber: "SN-1", Status: domain.EquipmentStatusAvailable}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				eq, err := tx.Equipment().GetForUpdate(ctx, 1)
				if err != nil {
					return err
				}
				c := "x" + deref(eq.Condition)
				eq.Condition = &c
				return tx.Equipment().Update(ctx, eq)
			})
		}()
	}
	wg.Wait()

	eq, err := s.Equipment().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, *eq.Condition, 20)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestEquipmentRepo_DuplicateSerial(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Equipment().Create(ctx, &domain.Equipment{SerialNumber: "SN-1"}))
	err := s.Equipment().Create(ctx, &domain.Equipment{SerialNumber: "SN-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRequestRepo_ActiveEquipmentUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	eqID := int64(5)

	first, second := newRequest(), newRequest()
	require.NoError(t, s.Requests().Create(ctx, first))
	require.NoError(t, s.Requests().Create(ctx, second))

	first.Status, first.EquipmentID = domain.RequestStatusFulfilled, &eqID
	require.NoError(t, s.Requests().Update(ctx, first))

	second.Status, second.EquipmentID = domain.RequestStatusFulfilled, &eqID
	assert.ErrorIs(t, s.Requests().Update(ctx, second), domain.ErrEquipmentNotAvailable)

	assert.ErrorIs(t, s.Requests().Update(ctx, &domain.EquipmentRequest{ID: 99}), domain.ErrNotFound)
}

func TestHistoryRepo_ListOrderAndCursor(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{base, base.Add(time.Minute), base, base.Add(2 * time.Minute)} {
		require.NoError(t, s.History().Append(ctx, &domain.HistoryEntry{
			SubjectKind: domain.SubjectRequest, SubjectID: 1, Action: domain.ActionStatusChanged, CreatedAt: at,
		}))
	}
	require.NoError(t, s.History().Append(ctx, &domain.HistoryEntry{SubjectKind: domain.SubjectEquipment, SubjectID: 1, CreatedAt: base}))

	asc, err := s.History().List(ctx, repository.HistoryQuery{SubjectKind: domain.SubjectRequest, SubjectID: 1, Order: domain.OldestFirst})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2, 4}, ids(asc))

	desc, err := s.History().List(ctx, repository.HistoryQuery{SubjectKind: domain.SubjectRequest, SubjectID: 1, Order: domain.NewestFirst, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2}, ids(desc))

	last := desc[1]
	rest, err := s.History().List(ctx, repository.HistoryQuery{
		SubjectKind: domain.SubjectRequest, SubjectID: 1, Order: domain.NewestFirst,
		After: &repository.HistoryCursor{CreatedAt: last.CreatedAt, ID: last.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids(rest))
}

func ids(entries []domain.HistoryEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestOutboxRepo_Lifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Outbox().Enqueue(ctx, &domain.TransitionEvent{ID: "a", Timestamp: now}))
	require.NoError(t, s.Outbox().Enqueue(ctx, &domain.TransitionEvent{ID: "b", Timestamp: now.Add(time.Second)}))

	pending, err := s.Outbox().ListPending(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, s.Outbox().MarkPublished(ctx, "a", now))
	require.NoError(t, s.Outbox().MarkFailed(ctx, "b", "redis down"))
	require.NoError(t, s.Outbox().MarkFailed(ctx, "b", "redis down"))

	pending, err = s.Outbox().ListPending(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, s.Outbox().MarkFailed(ctx, "zzz", "x"), domain.ErrNotFound)

	n, err := s.Outbox().PurgePublished(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
