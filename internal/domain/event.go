package domain

import "time"

// TransitionEvent is the outbox record written alongside every committed transition.
type TransitionEvent struct {
	ID          string      `json:"id"`
	TxID        string      `json:"tx_id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   int64       `json:"subject_id"`
	Action      Action      `json:"action"`
	OldStatus   string      `json:"old_status,omitempty"`
	NewStatus   string      `json:"new_status,omitempty"`
	ActorID     int64       `json:"actor_id"`
	Timestamp   time.Time   `json:"timestamp"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
	Attempts    int         `json:"attempts"`
	LastError   *string     `json:"last_error,omitempty"`
}

// EventFromEntry derives the outbox event for a ledger entry.
func EventFromEntry(id, txID string, h *HistoryEntry) *TransitionEvent {
	ev := &TransitionEvent{
		ID:          id,
		TxID:        txID,
		SubjectKind: h.SubjectKind,
		SubjectID:   h.SubjectID,
		Action:      h.Action,
		ActorID:     h.ActorID,
		Timestamp:   h.CreatedAt,
	}
	if h.OldState != nil {
		ev.OldStatus = *h.OldState
	}
	if h.NewState != nil {
		ev.NewStatus = *h.NewState
	}
	return ev
}
