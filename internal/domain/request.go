package domain

import (
	"fmt"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusOrdered   RequestStatus = "ordered"
	RequestStatusFulfilled RequestStatus = "fulfilled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected,
		RequestStatusOrdered, RequestStatusFulfilled:
		return true
	}
	return false
}

// Terminal reports whether approval and rejection can no longer mutate the request.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusRejected || s == RequestStatusFulfilled
}

// Assignable reports whether a unit may be bound to a request in this status.
func (s RequestStatus) Assignable() bool {
	return s == RequestStatusApproved || s == RequestStatusOrdered
}

// Approval is the decision of one approval tier.
type Approval string

const (
	ApprovalUnset   Approval = "unset"
	ApprovalGranted Approval = "granted"
	ApprovalDenied  Approval = "denied"
)

func (a Approval) Decided() bool {
	return a == ApprovalGranted || a == ApprovalDenied
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type EquipmentRequest struct {
	ID               int64         `json:"id"`
	RequesterID      int64         `json:"requester_id"`
	EquipmentType    string        `json:"equipment_type"`
	Justification    string        `json:"justification"`
	Priority         Priority      `json:"priority"`
	BudgetCents      *int64        `json:"budget_cents,omitempty"`
	NeededBy         *time.Time    `json:"needed_by,omitempty"`
	Status           RequestStatus `json:"status"`
	TeamLeadApproval Approval      `json:"team_lead_approval"`
	AdminApproval    Approval      `json:"admin_approval"`
	ApproverID       *int64        `json:"approver_id,omitempty"`
	RejectionReason  *string       `json:"rejection_reason,omitempty"`
	EquipmentID      *int64        `json:"equipment_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Clone returns a deep copy so stores never share pointers with callers.
func (r *EquipmentRequest) Clone() *EquipmentRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.BudgetCents = clonePtr(r.BudgetCents)
	c.NeededBy = clonePtr(r.NeededBy)
	c.ApproverID = clonePtr(r.ApproverID)
	c.RejectionReason = clonePtr(r.RejectionReason)
	c.EquipmentID = clonePtr(r.EquipmentID)
	return &c
}

// CheckInvariants verifies the structural rules every persisted request must satisfy.
func (r *EquipmentRequest) CheckInvariants() error {
	if r.AdminApproval != ApprovalUnset && r.TeamLeadApproval != ApprovalGranted {
		return fmt.Errorf("request %d: admin approval %s without team lead grant", r.ID, r.AdminApproval)
	}
	if (r.Status == RequestStatusApproved || r.Status == RequestStatusOrdered) &&
		(r.TeamLeadApproval != ApprovalGranted || r.AdminApproval != ApprovalGranted) {
		return fmt.Errorf("request %d: status %s without both approvals", r.ID, r.Status)
	}
	if (r.EquipmentID != nil) != (r.Status == RequestStatusFulfilled) {
		return fmt.Errorf("request %d: equipment reference does not match status %s", r.ID, r.Status)
	}
	if r.Status == RequestStatusRejected && (r.RejectionReason == nil || *r.RejectionReason == "") {
		return fmt.Errorf("request %d: rejected without reason", r.ID)
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
