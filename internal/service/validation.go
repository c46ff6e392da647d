package service

import (
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"equiptrack-backend/internal/domain"
)

const minReasonLength = 10

var placeholderReasons = map[string]struct{}{
	"n/a": {}, "na": {}, "none": {}, "-": {}, "test": {}, "no reason": {},
	"reject": {}, "rejected": {}, "tbd": {}, "...": {},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("rejection_reason", func(fl validator.FieldLevel) bool {
		return meaningfulReason(fl.Field().String())
	})
	return v
}

// meaningfulReason rejects blank, short and placeholder rejection reasons.
func meaningfulReason(reason string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(reason))
	if _, placeholder := placeholderReasons[trimmed]; placeholder {
		return false
	}
	n := 0
	for _, r := range trimmed {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n >= minReasonLength
}

type CreateRequestInput struct {
	// ActorID defaults to RequesterID when zero.
	ActorID       int64           `json:"-"`
	RequesterID   int64           `json:"requester_id" validate:"required,gt=0"`
	EquipmentType string          `json:"equipment_type" validate:"required,max=100"`
	Justification string          `json:"justification" validate:"required,max=2000"`
	Priority      domain.Priority `json:"priority" validate:"required,oneof=low medium high urgent"`
	BudgetCents   *int64          `json:"budget_cents,omitempty" validate:"omitempty,gte=0"`
	NeededBy      *time.Time      `json:"needed_by,omitempty"`
}

type RegisterEquipmentInput struct {
	ActorID      int64                  `json:"actor_id" validate:"required,gt=0"`
	SerialNumber string                 `json:"serial_number" validate:"required,max=100"`
	Category     string                 `json:"category" validate:"required,max=100"`
	Status       domain.EquipmentStatus `json:"status,omitempty" validate:"omitempty,oneof=pending available"`
	Condition    *string                `json:"condition,omitempty" validate:"omitempty,max=500"`
}

type TransitionInput struct {
	EquipmentID int64                  `json:"equipment_id"`
	ActorID     int64                  `json:"actor_id"`
	NewStatus   domain.EquipmentStatus `json:"new_status"`
	Reason      string                 `json:"reason"`
	Condition   *string                `json:"condition,omitempty"`
	// OwnerID is required when NewStatus is assigned.
	OwnerID *int64 `json:"owner_id,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type rejection struct {
	Reason string `validate:"rejection_reason"`
}

func validateInput(kind domain.SubjectKind, in any) error {
	if err := validate.Struct(in); err != nil {
		return &domain.WorkflowError{Kind: domain.ErrInvalidInput, SubjectKind: kind, Err: err}
	}
	return nil
}

func validateRejection(requestID int64, reason string) error {
	if err := validate.Struct(rejection{Reason: reason}); err != nil {
		return &domain.WorkflowError{Kind: domain.ErrReasonRequired, SubjectKind: domain.SubjectRequest, SubjectID: requestID, Err: err}
	}
	return nil
}
