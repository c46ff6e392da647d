package service

import (
	"slices"

	"equiptrack-backend/internal/domain"
)

// Operation names a guarded workflow entry point.
type Operation string

const (
	OpCreateRequest       Operation = "create_request"
	OpReadRequest         Operation = "read_request"
	OpTeamLeadDecision    Operation = "team_lead_decision"
	OpAdminDecision       Operation = "admin_decision"
	OpTransitionRequest   Operation = "transition_request"
	OpRegisterEquipment   Operation = "register_equipment"
	OpReadEquipment       Operation = "read_equipment"
	OpTransitionEquipment Operation = "transition_equipment"
	OpAssign              Operation = "assign"
	OpUnassign            Operation = "unassign"
	OpReadHistory         Operation = "read_history"
)

var permissions = map[Operation][]domain.Role{
	OpCreateRequest:       {domain.RoleUser, domain.RoleTeamLead, domain.RoleAdmin},
	OpReadRequest:         {domain.RoleUser, domain.RoleTeamLead, domain.RoleAdmin},
	OpTeamLeadDecision:    {domain.RoleTeamLead},
	OpAdminDecision:       {domain.RoleAdmin},
	OpTransitionRequest:   {domain.RoleAdmin},
	OpRegisterEquipment:   {domain.RoleAdmin},
	OpReadEquipment:       {domain.RoleTeamLead, domain.RoleAdmin},
	OpTransitionEquipment: {domain.RoleAdmin},
	OpAssign:              {domain.RoleAdmin},
	OpUnassign:            {domain.RoleAdmin},
	OpReadHistory:         {domain.RoleTeamLead, domain.RoleAdmin},
}

// Authorize returns a Forbidden error unless role may perform op.
func Authorize(role domain.Role, op Operation) error {
	if slices.Contains(permissions[op], role) {
		return nil
	}
	return &domain.WorkflowError{Kind: domain.ErrForbidden, State: string(op)}
}
