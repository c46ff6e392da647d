package service

import (
	"context"
	"iter"

	"equiptrack-backend/internal/domain"
)

// Actor is the verified caller of a workflow operation.
type Actor struct {
	ID   int64
	Role domain.Role
}

// Workflow checks the caller's role once and delegates to the state machines.
// Transports talk to this type only.
type Workflow struct {
	approvals   ApprovalService
	equipment   EquipmentService
	assignments AssignmentService
	history     HistoryService
}

func NewWorkflow(approvals ApprovalService, equipment EquipmentService, assignments AssignmentService, history HistoryService) *Workflow {
	return &Workflow{approvals: approvals, equipment: equipment, assignments: assignments, history: history}
}

func (w *Workflow) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (*domain.EquipmentRequest, error) {
	if err := Authorize(actor.Role, OpCreateRequest); err != nil {
		return nil, err
	}
	if in.RequesterID == 0 {
		in.RequesterID = actor.ID
	}
	// Only admins file requests on behalf of someone else.
	if in.RequesterID != actor.ID && actor.Role != domain.RoleAdmin {
		return nil, &domain.WorkflowError{Kind: domain.ErrForbidden, SubjectKind: domain.SubjectRequest, State: string(OpCreateRequest)}
	}
	in.ActorID = actor.ID
	return w.approvals.CreateRequest(ctx, in)
}

func (w *Workflow) GetRequest(ctx context.Context, actor Actor, id int64) (*domain.EquipmentRequest, error) {
	if err := Authorize(actor.Role, OpReadRequest); err != nil {
		return nil, err
	}
	req, err := w.approvals.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleUser && req.RequesterID != actor.ID {
		return nil, domain.NewError(domain.ErrForbidden, domain.SubjectRequest, id, "")
	}
	return req, nil
}

func (w *Workflow) ApproveAsTeamLead(ctx context.Context, actor Actor, requestID int64, notes string) (*domain.EquipmentRequest, error) {
	if err := Authorize(actor.Role, OpTeamLeadDecision); err != nil {
		return nil, err
	}
	return w.approvals.ApproveAsTeamLead(ctx, requestID, actor.ID, notes)
}

func (w *Workflow) RejectAsTeamLead(ctx context.Context, actor Actor, requestID int64, reason, notes string) (*domain.EquipmentRequest, error) {
	if err := Authorize(actor.Role, OpTeamLeadDecision); err != nil {
		return nil, err
	}
	return w.approvals.RejectAsTeamLead(ctx, requestID, actor.ID, reason, notes)
}

func (w *Workflow) ApproveAsAdmin(ctx context.Context, actor Actor, requestID int64, notes string) (*domain.EquipmentRequest, error) {
	if err := Authorize(actor.Role, OpAdminDecision); err != nil {
		return nil, err
	}
	return w.approvals.ApproveAsAdmin(ctx, requestID, actor.ID, notes)
}

func (w *Workflow) RejectAsAdmin(ctx context.Context, actor Actor, requestID int64, reason, notes string) (*domain.EquipmentRequest, error) {
	if err := Authorize(actor.Role, OpAdminDecision); err != nil {
		return nil, err
	}
	return w.approvals.RejectAsAdmin(ctx, requestID, actor.ID, reason, notes)
}

func (w *Workflow) TransitionRequestStatus(ctx context.Context, actor Actor, requestID int64, status domain.RequestStatus, notes string) (*domain.EquipmentRequest, error) {
	if err := Authorize(actor.Role, OpTransitionRequest); err != nil {
		return nil, err
	}
	return w.approvals.TransitionStatus(ctx, requestID, actor.ID, status, notes)
}

func (w *Workflow) RegisterEquipment(ctx context.Context, actor Actor, in RegisterEquipmentInput) (*domain.Equipment, error) {
	if err := Authorize(actor.Role, OpRegisterEquipment); err != nil {
		return nil, err
	}
	in.ActorID = actor.ID
	return w.equipment.RegisterEquipment(ctx, in)
}

func (w *Workflow) GetEquipment(ctx context.Context, actor Actor, id int64) (*domain.Equipment, error) {
	if err := Authorize(actor.Role, OpReadEquipment); err != nil {
		return nil, err
	}
	return w.equipment.GetEquipment(ctx, id)
}

func (w *Workflow) TransitionEquipment(ctx context.Context, actor Actor, in TransitionInput) (*domain.Equipment, error) {
	if err := Authorize(actor.Role, OpTransitionEquipment); err != nil {
		return nil, err
	}
	in.ActorID = actor.ID
	return w.equipment.Transition(ctx, in)
}

func (w *Workflow) QueryEquipment(ctx context.Context, actor Actor, id int64) (domain.EquipmentStatus, []domain.EquipmentStatus, error) {
	if err := Authorize(actor.Role, OpReadEquipment); err != nil {
		return "", nil, err
	}
	return w.equipment.Query(ctx, id)
}

func (w *Workflow) Assign(ctx context.Context, actor Actor, requestID, equipmentID int64, notes string) (*Assignment, error) {
	if err := Authorize(actor.Role, OpAssign); err != nil {
		return nil, err
	}
	return w.assignments.Assign(ctx, requestID, equipmentID, actor.ID, notes)
}

func (w *Workflow) Unassign(ctx context.Context, actor Actor, requestID int64, notes string) (*Assignment, error) {
	if err := Authorize(actor.Role, OpUnassign); err != nil {
		return nil, err
	}
	return w.assignments.Unassign(ctx, requestID, actor.ID, notes)
}

func (w *Workflow) ListHistory(ctx context.Context, actor Actor, kind domain.SubjectKind, subjectID int64, order domain.SortOrder) (iter.Seq2[domain.HistoryEntry, error], error) {
	if err := Authorize(actor.Role, OpReadHistory); err != nil {
		return nil, err
	}
	return w.history.ListFor(ctx, kind, subjectID, order), nil
}
