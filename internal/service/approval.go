package service

import (
	"context"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/repository"
)

type approvalService struct {
	store  repository.Store
	ledger *Ledger
	policy AdminApprovalPolicy
}

func NewApprovalService(store repository.Store, ledger *Ledger, policy AdminApprovalPolicy) ApprovalService {
	if policy == nil {
		policy = RequireAdminApproval
	}
	return &approvalService{store: store, ledger: ledger, policy: policy}
}

func (s *approvalService) CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.EquipmentRequest, error) {
	logger.EnterMethod("approvalService.CreateRequest", "requesterID", in.RequesterID)
	if err := validateInput(domain.SubjectRequest, in); err != nil {
		logger.ExitMethodWithError("approvalService.CreateRequest", err)
		return nil, err
	}

	at := now()
	req := &domain.EquipmentRequest{
		RequesterID:      in.RequesterID,
		EquipmentType:    in.EquipmentType,
		Justification:    in.Justification,
		Priority:         in.Priority,
		BudgetCents:      in.BudgetCents,
		NeededBy:         in.NeededBy,
		Status:           domain.RequestStatusPending,
		TeamLeadApproval: domain.ApprovalUnset,
		AdminApproval:    domain.ApprovalUnset,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Requests().Create(ctx, req); err != nil {
			return err
		}
		actorID := in.ActorID
		if actorID == 0 {
			actorID = req.RequesterID
		}
		entry := newEntry(domain.SubjectRequest, req.ID, actorID, domain.ActionCreated, nil, statusPtr(req.Status), "")
		return s.ledger.Append(ctx, tx, entry)
	})
	if err != nil {
		logger.ExitMethodWithError("approvalService.CreateRequest", err, "requesterID", in.RequesterID)
		return nil, err
	}

	logger.ExitMethod("approvalService.CreateRequest", "requestID", req.ID)
	return req, nil
}

func (s *approvalService) GetRequest(ctx context.Context, id int64) (*domain.EquipmentRequest, error) {
	return s.store.Requests().GetByID(ctx, id)
}

// decision mutates a locked request in memory and names the history action.
type decision func(req *domain.EquipmentRequest, meta map[string]string) (domain.Action, error)

func (s *approvalService) apply(ctx context.Context, method string, requestID, actorID int64, notes string, recordApprover bool, decide decision) (*domain.EquipmentRequest, error) {
	logger.EnterMethod(method, "requestID", requestID, "actorID", actorID)

	var out *domain.EquipmentRequest
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		oldStatus := req.Status
		meta := map[string]string{}

		action, err := decide(req, meta)
		if err != nil {
			return err
		}
		if recordApprover {
			req.ApproverID = &actorID
		}
		req.UpdatedAt = now()
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}

		entry := newEntry(domain.SubjectRequest, req.ID, actorID, action, statusPtr(oldStatus), statusPtr(req.Status), notes)
		for k, v := range meta {
			entry.Metadata[k] = v
		}
		if err := s.ledger.Append(ctx, tx, entry); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "requestID", requestID, "actorID", actorID)
		return nil, err
	}

	logger.ExitMethod(method, "requestID", requestID, "status", out.Status)
	return out, nil
}

func requestError(kind domain.ErrorKind, req *domain.EquipmentRequest) error {
	return domain.NewError(kind, domain.SubjectRequest, req.ID, string(req.Status))
}

// checkTeamLeadTier enforces the write-once team lead decision on a pending request.
func checkTeamLeadTier(req *domain.EquipmentRequest) error {
	if req.TeamLeadApproval.Decided() {
		return requestError(domain.ErrAlreadyDecided, req)
	}
	if req.Status != domain.RequestStatusPending {
		return requestError(domain.ErrInvalidState, req)
	}
	return nil
}

func checkAdminTier(req *domain.EquipmentRequest) error {
	if req.AdminApproval.Decided() {
		return requestError(domain.ErrAlreadyDecided, req)
	}
	if req.TeamLeadApproval != domain.ApprovalGranted || req.Status != domain.RequestStatusPending {
		return requestError(domain.ErrInvalidState, req)
	}
	return nil
}

func (s *approvalService) ApproveAsTeamLead(ctx context.Context, requestID, actorID int64, notes string) (*domain.EquipmentRequest, error) {
	return s.apply(ctx, "approvalService.ApproveAsTeamLead", requestID, actorID, notes, true,
		func(req *domain.EquipmentRequest, meta map[string]string) (domain.Action, error) {
			if err := checkTeamLeadTier(req); err != nil {
				return "", err
			}
			req.TeamLeadApproval = domain.ApprovalGranted
			if !s.policy(req) {
				req.AdminApproval = domain.ApprovalGranted
				req.Status = domain.RequestStatusApproved
				meta[domain.MetaAdminApproval] = domain.AdminApprovalWaived
			}
			return domain.ActionTeamLeadApproved, nil
		})
}

func (s *approvalService) RejectAsTeamLead(ctx context.Context, requestID, actorID int64, reason, notes string) (*domain.EquipmentRequest, error) {
	return s.apply(ctx, "approvalService.RejectAsTeamLead", requestID, actorID, notes, true,
		func(req *domain.EquipmentRequest, meta map[string]string) (domain.Action, error) {
			if err := checkTeamLeadTier(req); err != nil {
				return "", err
			}
			if err := validateRejection(req.ID, reason); err != nil {
				return "", err
			}
			req.TeamLeadApproval = domain.ApprovalDenied
			req.Status = domain.RequestStatusRejected
			req.RejectionReason = &reason
			meta[domain.MetaReason] = reason
			return domain.ActionTeamLeadRejected, nil
		})
}

func (s *approvalService) ApproveAsAdmin(ctx context.Context, requestID, actorID int64, notes string) (*domain.EquipmentRequest, error) {
	return s.apply(ctx, "approvalService.ApproveAsAdmin", requestID, actorID, notes, true,
		func(req *domain.EquipmentRequest, meta map[string]string) (domain.Action, error) {
			if err := checkAdminTier(req); err != nil {
				return "", err
			}
			req.AdminApproval = domain.ApprovalGranted
			req.Status = domain.RequestStatusApproved
			return domain.ActionAdminApproved, nil
		})
}

func (s *approvalService) RejectAsAdmin(ctx context.Context, requestID, actorID int64, reason, notes string) (*domain.EquipmentRequest, error) {
	return s.apply(ctx, "approvalService.RejectAsAdmin", requestID, actorID, notes, true,
		func(req *domain.EquipmentRequest, meta map[string]string) (domain.Action, error) {
			if err := checkAdminTier(req); err != nil {
				return "", err
			}
			if err := validateRejection(req.ID, reason); err != nil {
				return "", err
			}
			req.AdminApproval = domain.ApprovalDenied
			req.Status = domain.RequestStatusRejected
			req.RejectionReason = &reason
			meta[domain.MetaReason] = reason
			return domain.ActionAdminRejected, nil
		})
}

// TransitionStatus moves an approved request to ordered. Approval outcomes and
// fulfilment have dedicated operations and are refused here.
func (s *approvalService) TransitionStatus(ctx context.Context, requestID, actorID int64, newStatus domain.RequestStatus, notes string) (*domain.EquipmentRequest, error) {
	if !newStatus.Valid() {
		return nil, &domain.WorkflowError{Kind: domain.ErrInvalidInput, SubjectKind: domain.SubjectRequest, SubjectID: requestID, State: string(newStatus)}
	}
	return s.apply(ctx, "approvalService.TransitionStatus", requestID, actorID, notes, false,
		func(req *domain.EquipmentRequest, meta map[string]string) (domain.Action, error) {
			if newStatus != domain.RequestStatusOrdered || req.Status.Terminal() {
				return "", requestError(domain.ErrForbidden, req)
			}
			if req.Status != domain.RequestStatusApproved {
				return "", requestError(domain.ErrInvalidState, req)
			}
			req.Status = newStatus
			return domain.ActionStatusChanged, nil
		})
}
