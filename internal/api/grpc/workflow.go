package grpc

import (
	"context"

	"google.golang.org/grpc"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/service"
)

const ServiceName = "equiptrack.v1.WorkflowService"

// WorkflowServer is the server API for WorkflowService.
type WorkflowServer interface {
	CreateRequest(context.Context, *CreateRequestRequest) (*RequestReply, error)
	GetRequest(context.Context, *GetRequestRequest) (*RequestReply, error)
	ApproveAsTeamLead(context.Context, *DecisionRequest) (*RequestReply, error)
	RejectAsTeamLead(context.Context, *DecisionRequest) (*RequestReply, error)
	ApproveAsAdmin(context.Context, *DecisionRequest) (*RequestReply, error)
	RejectAsAdmin(context.Context, *DecisionRequest) (*RequestReply, error)
	TransitionRequestStatus(context.Context, *TransitionRequestStatusRequest) (*RequestReply, error)
	RegisterEquipment(context.Context, *RegisterEquipmentRequest) (*EquipmentReply, error)
	GetEquipment(context.Context, *GetEquipmentRequest) (*EquipmentReply, error)
	TransitionEquipment(context.Context, *TransitionEquipmentRequest) (*EquipmentReply, error)
	QueryEquipment(context.Context, *GetEquipmentRequest) (*QueryEquipmentReply, error)
	Assign(context.Context, *AssignRequest) (*AssignmentReply, error)
	Unassign(context.Context, *UnassignRequest) (*AssignmentReply, error)
	ListHistory(*ListHistoryRequest, grpc.ServerStream) error
}

// WorkflowHandler adapts the workflow facade to WorkflowService.
type WorkflowHandler struct {
	workflow *service.Workflow
}

func NewWorkflowHandler(workflow *service.Workflow) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

var _ WorkflowServer = (*WorkflowHandler)(nil)

// RegisterWorkflowServer attaches the handler to s.
func RegisterWorkflowServer(s grpc.ServiceRegistrar, h WorkflowServer) {
	s.RegisterService(&WorkflowServiceDesc, h)
}

func requestReply(req *domain.EquipmentRequest, err error) (*RequestReply, error) {
	if err != nil {
		return nil, err
	}
	return &RequestReply{Request: req}, nil
}

func equipmentReply(eq *domain.Equipment, err error) (*EquipmentReply, error) {
	if err != nil {
		return nil, err
	}
	return &EquipmentReply{Equipment: eq}, nil
}

func assignmentReply(a *service.Assignment, err error) (*AssignmentReply, error) {
	if err != nil {
		return nil, err
	}
	return &AssignmentReply{Request: a.Request, Equipment: a.Equipment, EquipmentReleased: a.Released}, nil
}

func (h *WorkflowHandler) CreateRequest(ctx context.Context, req *CreateRequestRequest) (*RequestReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return requestReply(h.workflow.CreateRequest(ctx, actor, service.CreateRequestInput{
		RequesterID:   req.RequesterID,
		EquipmentType: req.EquipmentType,
		Justification: req.Justification,
		Priority:      req.Priority,
		BudgetCents:   req.BudgetCents,
		NeededBy:      req.NeededBy,
	}))
}

func (h *WorkflowHandler) GetRequest(ctx context.Context, req *GetRequestRequest) (*RequestReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return requestReply(h.workflow.GetRequest(ctx, actor, req.RequestID))
}

func (h *WorkflowHandler) ApproveAsTeamLead(ctx context.Context, req *DecisionRequest) (*RequestReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return requestReply(h.workflow.ApproveAsTeamLead(ctx, actor, req.RequestID, req.Notes))
}

func (h *WorkflowHandler) RejectAsTeamLead(ctx context.Context, req *DecisionRequest) (*RequestReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return requestReply(h.workflow.RejectAsTeamLead(ctx, actor, req.RequestID, req.Reason, req.Notes))
}

func (h *WorkflowHandler) ApproveAsAdmin(ctx context.Context, req *DecisionRequest) (*RequestReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return requestReply(h.workflow.ApproveAsAdmin(ctx, actor, req.RequestID, req.Notes))
}

func (h *WorkflowHandler) RejectAsAdmin(ctx context.Context, req *DecisionRequest) (*RequestReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return requestReply(h.workflow.RejectAsAdmin(ctx, actor, req.RequestID, req.Reason, req.Notes))
}

func (h *WorkflowHandler) TransitionRequestStatus(ctx context.Context, req *TransitionRequestStatusRequest) (*RequestReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return requestReply(h.workflow.TransitionRequestStatus(ctx, actor, req.RequestID, req.Status, req.Notes))
}

func (h *WorkflowHandler) RegisterEquipment(ctx context.Context, req *RegisterEquipmentRequest) (*EquipmentReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return equipmentReply(h.workflow.RegisterEquipment(ctx, actor, service.RegisterEquipmentInput{
		SerialNumber: req.SerialNumber,
		Category:     req.Category,
		Status:       req.Status,
		Condition:    req.Condition,
	}))
}

func (h *WorkflowHandler) GetEquipment(ctx context.Context, req *GetEquipmentRequest) (*EquipmentReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return equipmentReply(h.workflow.GetEquipment(ctx, actor, req.EquipmentID))
}

func (h *WorkflowHandler) TransitionEquipment(ctx context.Context, req *TransitionEquipmentRequest) (*EquipmentReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return equipmentReply(h.workflow.TransitionEquipment(ctx, actor, service.TransitionInput{
		EquipmentID: req.EquipmentID,
		NewStatus:   req.NewStatus,
		Reason:      req.Reason,
		Condition:   req.Condition,
		OwnerID:     req.OwnerID,
		Notes:       req.Notes,
	}))
}

func (h *WorkflowHandler) QueryEquipment(ctx context.Context, req *GetEquipmentRequest) (*QueryEquipmentReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	st, targets, err := h.workflow.QueryEquipment(ctx, actor, req.EquipmentID)
	if err != nil {
		return nil, err
	}
	return &QueryEquipmentReply{Status: st, AllowedTargets: targets}, nil
}

func (h *WorkflowHandler) Assign(ctx context.Context, req *AssignRequest) (*AssignmentReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return assignmentReply(h.workflow.Assign(ctx, actor, req.RequestID, req.EquipmentID, req.Notes))
}

func (h *WorkflowHandler) Unassign(ctx context.Context, req *UnassignRequest) (*AssignmentReply, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return assignmentReply(h.workflow.Unassign(ctx, actor, req.RequestID, req.Notes))
}

// ListHistory streams one entry per message.
func (h *WorkflowHandler) ListHistory(req *ListHistoryRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return err
	}
	order := req.Order
	if order == "" {
		order = domain.OldestFirst
	}
	seq, err := h.workflow.ListHistory(ctx, actor, req.SubjectKind, req.SubjectID, order)
	if err != nil {
		return err
	}
	for entry, err := range seq {
		if err != nil {
			return err
		}
		if err := stream.SendMsg(&entry); err != nil {
			return err
		}
	}
	return nil
}
