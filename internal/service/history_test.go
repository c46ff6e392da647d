package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/service"
)

func actions(entries []domain.HistoryEntry) []domain.Action {
	out := make([]domain.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestLedger_ListForPagesAcrossBoundaries(t *testing.T) {
	e := newEnv(t, nil)
	req := e.approvedRequest(t)
	eq := e.registerEquipment(t, "SN-001")
	_, err := e.assignments.Assign(context.Background(), req.ID, eq.ID, adminID, "")
	require.NoError(t, err)

	// created, team lead, admin, assigned with a page size of 2
	oldest := e.history(t, domain.SubjectRequest, req.ID)
	assert.Equal(t, []domain.Action{
		domain.ActionCreated, domain.ActionTeamLeadApproved, domain.ActionAdminApproved, domain.ActionAssigned,
	}, actions(oldest))

	newest, err := service.Collect(e.ledger.ListFor(context.Background(), domain.SubjectRequest, req.ID, domain.NewestFirst))
	require.NoError(t, err)
	assert.Equal(t, []domain.Action{
		domain.ActionAssigned, domain.ActionAdminApproved, domain.ActionTeamLeadApproved, domain.ActionCreated,
	}, actions(newest))

	for i := 1; i < len(oldest); i++ {
		prev, cur := oldest[i-1], oldest[i]
		assert.False(t, cur.CreatedAt.Before(prev.CreatedAt))
		assert.NotEqual(t, prev.ID, cur.ID)
	}
}

func TestLedger_ListForIsRestartable(t *testing.T) {
	e := newEnv(t, nil)
	req := e.approvedRequest(t)
	seq := e.ledger.ListFor(context.Background(), domain.SubjectRequest, req.ID, domain.OldestFirst)

	first, err := service.Collect(seq)
	require.NoError(t, err)
	second, err := service.Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLedger_ListForEarlyBreak(t *testing.T) {
	e := newEnv(t, nil)
	req := e.approvedRequest(t)

	var seen []domain.Action
	for entry, err := range e.ledger.ListFor(context.Background(), domain.SubjectRequest, req.ID, domain.OldestFirst) {
		require.NoError(t, err)
		seen = append(seen, entry.Action)
		if len(seen) == 1 {
			break
		}
	}
	assert.Equal(t, []domain.Action{domain.ActionCreated}, seen)
}

func TestLedger_ListForInvalidQuery(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := service.Collect(e.ledger.ListFor(ctx, domain.SubjectKind("invoice"), 1, domain.OldestFirst))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.Collect(e.ledger.ListFor(ctx, domain.SubjectRequest, 1, domain.SortOrder("sideways")))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedger_ListForUnknownSubjectIsEmpty(t *testing.T) {
	e := newEnv(t, nil)
	assert.Empty(t, e.history(t, domain.SubjectEquipment, 42))
}

func TestLedger_EventsMirrorHistory(t *testing.T) {
	e := newEnv(t, nil)
	req := e.approvedRequest(t)

	entries := e.history(t, domain.SubjectRequest, req.ID)
	events := e.pendingEvents(t)
	require.Len(t, events, len(entries))
	for i, ev := range events {
		assert.Equal(t, entries[i].Action, ev.Action)
		assert.Equal(t, entries[i].Metadata[domain.MetaTxID], ev.TxID)
		assert.Equal(t, req.ID, ev.SubjectID)
		assert.NotEmpty(t, ev.ID)
	}
	assert.NotEqual(t, events[0].TxID, events[1].TxID)
}
