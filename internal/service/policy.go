package service

import "equiptrack-backend/internal/domain"

// AdminApprovalPolicy reports whether the request still needs the admin tier
// once the team lead has approved it.
type AdminApprovalPolicy func(req *domain.EquipmentRequest) bool

func RequireAdminApproval(*domain.EquipmentRequest) bool { return true }

// WaiveAdminApprovalBelow skips the admin tier for requests with a budget
// strictly below the threshold. Requests without a budget always need it.
func WaiveAdminApprovalBelow(cents int64) AdminApprovalPolicy {
	if cents <= 0 {
		return RequireAdminApproval
	}
	return func(req *domain.EquipmentRequest) bool {
		return req.BudgetCents == nil || *req.BudgetCents >= cents
	}
}
