package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
	"equiptrack-backend/internal/repository/memory"
	"equiptrack-backend/internal/service"
)

const (
	requesterID = int64(100)
	teamLeadID  = int64(200)
	adminID     = int64(300)
)

type env struct {
	store       *memory.Store
	ledger      *service.Ledger
	approvals   service.ApprovalService
	equipment   service.EquipmentService
	assignments service.AssignmentService
	workflow    *service.Workflow
}

func newEnv(t *testing.T, policy service.AdminApprovalPolicy) *env {
	t.Helper()
	store := memory.NewStore()
	return newEnvWithStore(store, store, policy)
}

func newEnvWithStore(mem *memory.Store, store repository.Store, policy service.AdminApprovalPolicy) *env {
	ledger := service.NewLedger(store, 2)
	e := &env{
		store:       mem,
		ledger:      ledger,
		approvals:   service.NewApprovalService(store, ledger, policy),
		equipment:   service.NewEquipmentService(store, ledger),
		assignments: service.NewAssignmentService(store, ledger),
	}
	e.workflow = service.NewWorkflow(e.approvals, e.equipment, e.assignments, ledger)
	return e
}

func (e *env) createRequest(t *testing.T) *domain.EquipmentRequest {
	t.Helper()
	req, err := e.approvals.CreateRequest(context.Background(), service.CreateRequestInput{
		RequesterID:   requesterID,
		EquipmentType: "laptop",
		Justification: "onboarding a new engineer",
		Priority:      domain.PriorityMedium,
	})
	require.NoError(t, err)
	return req
}

func (e *env) approvedRequest(t *testing.T) *domain.EquipmentRequest {
	t.Helper()
	ctx := context.Background()
	req := e.createRequest(t)
	_, err := e.approvals.ApproveAsTeamLead(ctx, req.ID, teamLeadID, "")
	require.NoError(t, err)
	req, err = e.approvals.ApproveAsAdmin(ctx, req.ID, adminID, "")
	require.NoError(t, err)
	return req
}

func (e *env) registerEquipment(t *testing.T, serial string) *domain.Equipment {
	t.Helper()
	eq, err := e.equipment.RegisterEquipment(context.Background(), service.RegisterEquipmentInput{
		ActorID:      adminID,
		SerialNumber: serial,
		Category:     "laptop",
	})
	require.NoError(t, err)
	return eq
}

func (e *env) history(t *testing.T, kind domain.SubjectKind, id int64) []domain.HistoryEntry {
	t.Helper()
	entries, err := service.Collect(e.ledger.ListFor(context.Background(), kind, id, domain.OldestFirst))
	require.NoError(t, err)
	return entries
}

func (e *env) pendingEvents(t *testing.T) []domain.TransitionEvent {
	t.Helper()
	events, err := e.store.Outbox().ListPending(context.Background(), 0, 1000)
	require.NoError(t, err)
	return events
}

func (e *env) request(t *testing.T, id int64) *domain.EquipmentRequest {
	t.Helper()
	req, err := e.store.Requests().GetByID(context.Background(), id)
	require.NoError(t, err)
	return req
}

func (e *env) unit(t *testing.T, id int64) *domain.Equipment {
	t.Helper()
	eq, err := e.store.Equipment().GetByID(context.Background(), id)
	require.NoError(t, err)
	return eq
}

// failingHistoryStore wraps a store so every transactional history append fails.
type failingHistoryStore struct {
	*memory.Store
}

type failingHistoryTx struct {
	repository.Tx
}

type failingHistory struct {
	repository.HistoryRepository
}

var errDiskFull = errors.New("disk full")

func (failingHistory) Append(context.Context, *domain.HistoryEntry) error { return errDiskFull }

func (t failingHistoryTx) History() repository.HistoryRepository {
	return failingHistory{t.Tx.History()}
}

func (s failingHistoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, failingHistoryTx{tx})
	})
}
