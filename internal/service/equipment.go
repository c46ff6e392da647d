package service

import (
	"context"
	"strconv"
	"strings"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/repository"
)

type equipmentService struct {
	store  repository.Store
	ledger *Ledger
}

func NewEquipmentService(store repository.Store, ledger *Ledger) EquipmentService {
	return &equipmentService{store: store, ledger: ledger}
}

func (s *equipmentService) RegisterEquipment(ctx context.Context, in RegisterEquipmentInput) (*domain.Equipment, error) {
	logger.EnterMethod("equipmentService.RegisterEquipment", "serialNumber", in.SerialNumber)
	if err := validateInput(domain.SubjectEquipment, in); err != nil {
		logger.ExitMethodWithError("equipmentService.RegisterEquipment", err)
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.EquipmentStatusAvailable
	}

	at := now()
	eq := &domain.Equipment{
		SerialNumber: in.SerialNumber,
		Category:     in.Category,
		Status:       in.Status,
		Condition:    in.Condition,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Equipment().Create(ctx, eq); err != nil {
			return err
		}
		entry := newEntry(domain.SubjectEquipment, eq.ID, in.ActorID, domain.ActionRegistered, nil, statusPtr(eq.Status), "")
		entry.Metadata[domain.MetaReason] = "inventory intake"
		return s.ledger.Append(ctx, tx, entry)
	})
	if err != nil {
		logger.ExitMethodWithError("equipmentService.RegisterEquipment", err, "serialNumber", in.SerialNumber)
		return nil, err
	}

	logger.ExitMethod("equipmentService.RegisterEquipment", "equipmentID", eq.ID)
	return eq, nil
}

func (s *equipmentService) GetEquipment(ctx context.Context, id int64) (*domain.Equipment, error) {
	return s.store.Equipment().GetByID(ctx, id)
}

func (s *equipmentService) Transition(ctx context.Context, in TransitionInput) (*domain.Equipment, error) {
	logger.EnterMethod("equipmentService.Transition", "equipmentID", in.EquipmentID, "newStatus", in.NewStatus)

	if strings.TrimSpace(in.Reason) == "" {
		err := domain.NewError(domain.ErrReasonRequired, domain.SubjectEquipment, in.EquipmentID, "")
		logger.ExitMethodWithError("equipmentService.Transition", err)
		return nil, err
	}

	var out *domain.Equipment
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		eq, err := tx.Equipment().GetForUpdate(ctx, in.EquipmentID)
		if err != nil {
			return err
		}
		from := eq.Status
		if !from.CanTransitionTo(in.NewStatus) {
			return domain.NewError(domain.ErrIllegalTransition, domain.SubjectEquipment, eq.ID, string(from))
		}

		meta := map[string]string{domain.MetaReason: in.Reason}
		switch {
		case in.NewStatus == domain.EquipmentStatusAssigned:
			if in.OwnerID == nil {
				return domain.NewError(domain.ErrInvalidInput, domain.SubjectEquipment, eq.ID, string(from))
			}
			eq.CurrentOwnerID = in.OwnerID
			meta[domain.MetaOwnerID] = strconv.FormatInt(*in.OwnerID, 10)
		case from == domain.EquipmentStatusAssigned:
			if eq.CurrentOwnerID != nil {
				meta[domain.MetaOwnerID] = strconv.FormatInt(*eq.CurrentOwnerID, 10)
			}
			eq.CurrentOwnerID = nil
		}
		if in.Condition != nil {
			eq.Condition = in.Condition
			meta[domain.MetaCondition] = *in.Condition
		}
		eq.Status = in.NewStatus
		eq.UpdatedAt = now()

		if err := tx.Equipment().Update(ctx, eq); err != nil {
			return err
		}
		entry := newEntry(domain.SubjectEquipment, eq.ID, in.ActorID, domain.ActionStatusChanged, statusPtr(from), statusPtr(eq.Status), in.Notes)
		for k, v := range meta {
			entry.Metadata[k] = v
		}
		if err := s.ledger.Append(ctx, tx, entry); err != nil {
			return err
		}
		out = eq
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("equipmentService.Transition", err, "equipmentID", in.EquipmentID)
		return nil, err
	}

	logger.ExitMethod("equipmentService.Transition", "equipmentID", out.ID, "status", out.Status)
	return out, nil
}

// Query is a pure read of the current status and its allowed targets.
func (s *equipmentService) Query(ctx context.Context, id int64) (domain.EquipmentStatus, []domain.EquipmentStatus, error) {
	eq, err := s.store.Equipment().GetByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return eq.Status, eq.Status.AllowedTargets(), nil
}
