package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies workflow failures. Each kind is itself an error so
// callers can match with errors.Is(err, domain.ErrInvalidState).
type ErrorKind string

func (k ErrorKind) Error() string { return string(k) }

const (
	ErrInvalidState          ErrorKind = "invalid_state"
	ErrAlreadyDecided        ErrorKind = "already_decided"
	ErrIllegalTransition     ErrorKind = "illegal_transition"
	ErrReasonRequired        ErrorKind = "reason_required"
	ErrRequestNotApproved    ErrorKind = "request_not_approved"
	ErrEquipmentNotAvailable ErrorKind = "equipment_not_available"
	ErrAlreadyAssigned       ErrorKind = "already_assigned"
	ErrConcurrencyConflict   ErrorKind = "concurrency_conflict"
	ErrLedgerWriteFailed     ErrorKind = "ledger_write_failed"
	ErrForbidden             ErrorKind = "forbidden"
	ErrNotFound              ErrorKind = "not_found"
	ErrInvalidInput          ErrorKind = "invalid_input"
)

// WorkflowError carries the kind plus the subject the failure concerns.
type WorkflowError struct {
	Kind        ErrorKind
	SubjectKind SubjectKind
	SubjectID   int64
	State       string
	Err         error
}

func NewError(kind ErrorKind, subject SubjectKind, id int64, state string) *WorkflowError {
	return &WorkflowError{Kind: kind, SubjectKind: subject, SubjectID: id, State: state}
}

// WrapError attaches a cause. If err already carries a WorkflowError it is returned unchanged.
func WrapError(kind ErrorKind, err error) error {
	var we *WorkflowError
	if errors.As(err, &we) {
		return err
	}
	return &WorkflowError{Kind: kind, Err: err}
}

func (e *WorkflowError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.SubjectKind != "" {
		fmt.Fprintf(&b, ": %s %d", e.SubjectKind, e.SubjectID)
	}
	if e.State != "" {
		fmt.Fprintf(&b, " in state %s", e.State)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *WorkflowError) Unwrap() error { return e.Err }

func (e *WorkflowError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// KindOf returns the kind carried by err, or "" when err is not a workflow error.
func KindOf(err error) ErrorKind {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// Expected reports whether the error is a refused operation rather than a fault.
func (e *WorkflowError) Expected() bool {
	return e.Kind != ErrLedgerWriteFailed
}
