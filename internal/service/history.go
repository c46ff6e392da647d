package service

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
)

const defaultHistoryPageSize = 100

// Ledger is the append-only audit trail. Appends happen inside the caller's
// transaction together with the matching outbox events.
type Ledger struct {
	store    repository.Store
	pageSize int
}

func NewLedger(store repository.Store, pageSize int) *Ledger {
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	return &Ledger{store: store, pageSize: pageSize}
}

var _ HistoryService = (*Ledger)(nil)

// Append records entries sharing one transaction id and enqueues one
// transition event per entry. Any failure is reported as LedgerWriteFailed so
// the enclosing transaction rolls back.
func (l *Ledger) Append(ctx context.Context, tx repository.Tx, entries ...*domain.HistoryEntry) error {
	txID := uuid.NewString()
	for _, e := range entries {
		if e.Metadata == nil {
			e.Metadata = map[string]string{}
		}
		e.Metadata[domain.MetaTxID] = txID

		if err := tx.History().Append(ctx, e); err != nil {
			return ledgerFailure(e, fmt.Errorf("append history: %w", err))
		}
		if err := tx.Outbox().Enqueue(ctx, domain.EventFromEntry(uuid.NewString(), txID, e)); err != nil {
			return ledgerFailure(e, fmt.Errorf("enqueue transition event: %w", err))
		}
	}
	return nil
}

func ledgerFailure(e *domain.HistoryEntry, err error) error {
	return &domain.WorkflowError{
		Kind:        domain.ErrLedgerWriteFailed,
		SubjectKind: e.SubjectKind,
		SubjectID:   e.SubjectID,
		Err:         err,
	}
}

// ListFor streams a subject's entries page by page. Each range over the
// returned sequence starts again from the first entry.
func (l *Ledger) ListFor(ctx context.Context, kind domain.SubjectKind, subjectID int64, order domain.SortOrder) iter.Seq2[domain.HistoryEntry, error] {
	return func(yield func(domain.HistoryEntry, error) bool) {
		if !kind.Valid() || !order.Valid() {
			yield(domain.HistoryEntry{}, &domain.WorkflowError{
				Kind: domain.ErrInvalidInput,
				Err:  fmt.Errorf("subject kind %q, order %q", kind, order),
			})
			return
		}

		q := repository.HistoryQuery{SubjectKind: kind, SubjectID: subjectID, Order: order, Limit: l.pageSize}
		for {
			page, err := l.store.History().List(ctx, q)
			if err != nil {
				yield(domain.HistoryEntry{}, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			last := page[len(page)-1]
			q.After = &repository.HistoryCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Collect drains a history sequence into a slice.
func Collect(seq iter.Seq2[domain.HistoryEntry, error]) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func newEntry(kind domain.SubjectKind, id, actorID int64, action domain.Action, oldState, newState *string, notes string) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		SubjectKind: kind,
		SubjectID:   id,
		ActorID:     actorID,
		Action:      action,
		OldState:    oldState,
		NewState:    newState,
		Notes:       optional(notes),
		Metadata:    map[string]string{},
		CreatedAt:   now(),
	}
}
