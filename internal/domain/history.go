package domain

import "time"

type SubjectKind string

const (
	SubjectRequest   SubjectKind = "request"
	SubjectEquipment SubjectKind = "equipment"
)

func (k SubjectKind) Valid() bool {
	return k == SubjectRequest || k == SubjectEquipment
}

type Action string

const (
	ActionCreated          Action = "created"
	ActionRegistered       Action = "registered"
	ActionTeamLeadApproved Action = "team_lead_approved"
	ActionTeamLeadRejected Action = "team_lead_rejected"
	ActionAdminApproved    Action = "admin_approved"
	ActionAdminRejected    Action = "admin_rejected"
	ActionStatusChanged    Action = "status_changed"
	ActionAssigned         Action = "assigned"
	ActionUnassigned       Action = "unassigned"
)

// Metadata keys written by the workflow engine.
const (
	MetaTxID              = "tx_id"
	MetaReason            = "reason"
	MetaCondition         = "condition"
	MetaOwnerID           = "owner_id"
	MetaRequestID         = "request_id"
	MetaEquipmentID       = "equipment_id"
	MetaAdminApproval     = "admin_approval"
	MetaEquipmentReleased = "equipment_released"

	AdminApprovalWaived = "waived_by_policy"
)

// HistoryEntry is one immutable ledger row.
type HistoryEntry struct {
	ID          int64             `json:"id"`
	SubjectKind SubjectKind       `json:"subject_kind"`
	SubjectID   int64             `json:"subject_id"`
	ActorID     int64             `json:"actor_id"`
	Action      Action            `json:"action"`
	OldState    *string           `json:"old_state,omitempty"`
	NewState    *string           `json:"new_state,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (h HistoryEntry) Clone() HistoryEntry {
	c := h
	c.OldState = clonePtr(h.OldState)
	c.NewState = clonePtr(h.NewState)
	c.Notes = clonePtr(h.Notes)
	if h.Metadata != nil {
		c.Metadata = make(map[string]string, len(h.Metadata))
		for k, v := range h.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

type SortOrder string

const (
	OldestFirst SortOrder = "asc"
	NewestFirst SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == OldestFirst || o == NewestFirst
}
