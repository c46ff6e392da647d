package service

import (
	"context"
	"iter"
	"time"

	"equiptrack-backend/internal/domain"
)

// ApprovalService drives an equipment request through the two approval tiers.
type ApprovalService interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.EquipmentRequest, error)
	GetRequest(ctx context.Context, id int64) (*domain.EquipmentRequest, error)
	ApproveAsTeamLead(ctx context.Context, requestID, actorID int64, notes string) (*domain.EquipmentRequest, error)
	RejectAsTeamLead(ctx context.Context, requestID, actorID int64, reason, notes string) (*domain.EquipmentRequest, error)
	ApproveAsAdmin(ctx context.Context, requestID, actorID int64, notes string) (*domain.EquipmentRequest, error)
	RejectAsAdmin(ctx context.Context, requestID, actorID int64, reason, notes string) (*domain.EquipmentRequest, error)
	TransitionStatus(ctx context.Context, requestID, actorID int64, newStatus domain.RequestStatus, notes string) (*domain.EquipmentRequest, error)
}

// EquipmentService owns the equipment lifecycle.
type EquipmentService interface {
	RegisterEquipment(ctx context.Context, in RegisterEquipmentInput) (*domain.Equipment, error)
	GetEquipment(ctx context.Context, id int64) (*domain.Equipment, error)
	Transition(ctx context.Context, in TransitionInput) (*domain.Equipment, error)
	Query(ctx context.Context, id int64) (domain.EquipmentStatus, []domain.EquipmentStatus, error)
}

// AssignmentService binds and unbinds units and requests atomically.
type AssignmentService interface {
	Assign(ctx context.Context, requestID, equipmentID, actorID int64, notes string) (*Assignment, error)
	Unassign(ctx context.Context, requestID, actorID int64, notes string) (*Assignment, error)
}

type HistoryService interface {
	ListFor(ctx context.Context, kind domain.SubjectKind, subjectID int64, order domain.SortOrder) iter.Seq2[domain.HistoryEntry, error]
}

// Assignment is the post-commit state of both sides of a binding.
type Assignment struct {
	Request   *domain.EquipmentRequest `json:"request"`
	Equipment *domain.Equipment        `json:"equipment"`
	// Released is false when Unassign left a unit that had already moved elsewhere untouched.
	Released bool `json:"released"`
}

// now is truncated to the storage precision of timestamptz.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statusPtr[S ~string](s S) *string {
	v := string(s)
	return &v
}
