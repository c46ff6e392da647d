package grpc

import (
	"time"

	"equiptrack-backend/internal/domain"
)

// WorkflowService wire messages. The caller identity always comes from the
// token, never from the message body.

type CreateRequestRequest struct {
	// RequesterID defaults to the caller. Only admins may name someone else.
	RequesterID   int64           `json:"requester_id,omitempty"`
	EquipmentType string          `json:"equipment_type"`
	Justification string          `json:"justification"`
	Priority      domain.Priority `json:"priority"`
	BudgetCents   *int64          `json:"budget_cents,omitempty"`
	NeededBy      *time.Time      `json:"needed_by,omitempty"`
}

type GetRequestRequest struct {
	RequestID int64 `json:"request_id"`
}

// DecisionRequest serves all four approval tier calls. Reason is only read
// by the rejections.
type DecisionRequest struct {
	RequestID int64  `json:"request_id"`
	Reason    string `json:"reason,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type TransitionRequestStatusRequest struct {
	RequestID int64                `json:"request_id"`
	Status    domain.RequestStatus `json:"status"`
	Notes     string               `json:"notes,omitempty"`
}

type RequestReply struct {
	Request *domain.EquipmentRequest `json:"request"`
}

type RegisterEquipmentRequest struct {
	SerialNumber string                 `json:"serial_number"`
	Category     string                 `json:"category"`
	Status       domain.EquipmentStatus `json:"status,omitempty"`
	Condition    *string                `json:"condition,omitempty"`
}

type GetEquipmentRequest struct {
	EquipmentID int64 `json:"equipment_id"`
}

type TransitionEquipmentRequest struct {
	EquipmentID int64                  `json:"equipment_id"`
	NewStatus   domain.EquipmentStatus `json:"new_status"`
	Reason      string                 `json:"reason"`
	Condition   *string                `json:"condition,omitempty"`
	OwnerID     *int64                 `json:"owner_id,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
}

type EquipmentReply struct {
	Equipment *domain.Equipment `json:"equipment"`
}

type QueryEquipmentReply struct {
	Status         domain.EquipmentStatus   `json:"status"`
	AllowedTargets []domain.EquipmentStatus `json:"allowed_targets"`
}

type AssignRequest struct {
	RequestID   int64  `json:"request_id"`
	EquipmentID int64  `json:"equipment_id"`
	Notes       string `json:"notes,omitempty"`
}

type UnassignRequest struct {
	RequestID int64  `json:"request_id"`
	Notes     string `json:"notes,omitempty"`
}

type AssignmentReply struct {
	Request           *domain.EquipmentRequest `json:"request"`
	Equipment         *domain.Equipment        `json:"equipment"`
	EquipmentReleased bool                     `json:"equipment_released"`
}

type ListHistoryRequest struct {
	SubjectKind domain.SubjectKind `json:"subject_kind"`
	SubjectID   int64              `json:"subject_id"`
	// Order defaults to oldest first.
	Order domain.SortOrder `json:"order,omitempty"`
}
