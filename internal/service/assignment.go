package service

import (
	"context"
	"strconv"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/repository"
)

type assignmentService struct {
	store  repository.Store
	ledger *Ledger
}

func NewAssignmentService(store repository.Store, ledger *Ledger) AssignmentService {
	return &assignmentService{store: store, ledger: ledger}
}

// Assign binds an available unit to an approved request. Rows are locked
// request first, then equipment.
func (s *assignmentService) Assign(ctx context.Context, requestID, equipmentID, actorID int64, notes string) (*Assignment, error) {
	logger.EnterMethod("assignmentService.Assign", "requestID", requestID, "equipmentID", equipmentID, "actorID", actorID)

	var out *Assignment
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		eq, err := tx.Equipment().GetForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}

		if req.EquipmentID != nil {
			return requestError(domain.ErrAlreadyAssigned, req)
		}
		if !req.Status.Assignable() {
			return requestError(domain.ErrRequestNotApproved, req)
		}
		if eq.Status != domain.EquipmentStatusAvailable {
			return domain.NewError(domain.ErrEquipmentNotAvailable, domain.SubjectEquipment, eq.ID, string(eq.Status))
		}

		at := now()
		oldReq, oldEq := req.Status, eq.Status

		owner, unit := req.RequesterID, eq.ID
		eq.Status = domain.EquipmentStatusAssigned
		eq.CurrentOwnerID = &owner
		eq.UpdatedAt = at
		req.Status = domain.RequestStatusFulfilled
		req.EquipmentID = &unit
		req.UpdatedAt = at

		if err := tx.Equipment().Update(ctx, eq); err != nil {
			return err
		}
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}

		reqEntry := newEntry(domain.SubjectRequest, req.ID, actorID, domain.ActionAssigned, statusPtr(oldReq), statusPtr(req.Status), notes)
		reqEntry.Metadata[domain.MetaEquipmentID] = strconv.FormatInt(eq.ID, 10)
		eqEntry := newEntry(domain.SubjectEquipment, eq.ID, actorID, domain.ActionAssigned, statusPtr(oldEq), statusPtr(eq.Status), notes)
		eqEntry.Metadata[domain.MetaRequestID] = strconv.FormatInt(req.ID, 10)
		eqEntry.Metadata[domain.MetaOwnerID] = strconv.FormatInt(req.RequesterID, 10)
		if err := s.ledger.Append(ctx, tx, reqEntry, eqEntry); err != nil {
			return err
		}

		out = &Assignment{Request: req, Equipment: eq, Released: true}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("assignmentService.Assign", err, "requestID", requestID, "equipmentID", equipmentID)
		return nil, err
	}

	logger.ExitMethod("assignmentService.Assign", "requestID", requestID, "equipmentID", equipmentID)
	return out, nil
}

// Unassign returns a fulfilled request to approved. The unit goes back to
// available only if it is still assigned to the requester.
func (s *assignmentService) Unassign(ctx context.Context, requestID, actorID int64, notes string) (*Assignment, error) {
	logger.EnterMethod("assignmentService.Unassign", "requestID", requestID, "actorID", actorID)

	var out *Assignment
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.EquipmentID == nil {
			return requestError(domain.ErrInvalidState, req)
		}
		eq, err := tx.Equipment().GetForUpdate(ctx, *req.EquipmentID)
		if err != nil {
			return err
		}

		at := now()
		oldReq, oldEq := req.Status, eq.Status
		released := eq.Status == domain.EquipmentStatusAssigned &&
			eq.CurrentOwnerID != nil && *eq.CurrentOwnerID == req.RequesterID

		if released {
			eq.Status = domain.EquipmentStatusAvailable
			eq.CurrentOwnerID = nil
			eq.UpdatedAt = at
			if err := tx.Equipment().Update(ctx, eq); err != nil {
				return err
			}
		}
		req.Status = domain.RequestStatusApproved
		req.EquipmentID = nil
		req.UpdatedAt = at
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}

		reqEntry := newEntry(domain.SubjectRequest, req.ID, actorID, domain.ActionUnassigned, statusPtr(oldReq), statusPtr(req.Status), notes)
		reqEntry.Metadata[domain.MetaEquipmentID] = strconv.FormatInt(eq.ID, 10)
		eqEntry := newEntry(domain.SubjectEquipment, eq.ID, actorID, domain.ActionUnassigned, statusPtr(oldEq), statusPtr(eq.Status), notes)
		eqEntry.Metadata[domain.MetaRequestID] = strconv.FormatInt(req.ID, 10)
		eqEntry.Metadata[domain.MetaEquipmentReleased] = strconv.FormatBool(released)
		if err := s.ledger.Append(ctx, tx, reqEntry, eqEntry); err != nil {
			return err
		}

		out = &Assignment{Request: req, Equipment: eq, Released: released}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("assignmentService.Unassign", err, "requestID", requestID)
		return nil, err
	}

	logger.ExitMethod("assignmentService.Unassign", "requestID", requestID, "released", out.Released)
	return out, nil
}
