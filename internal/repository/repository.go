package repository

import (
	"context"
	"time"

	"equiptrack-backend/internal/domain"
)

// Lookups return domain.ErrNotFound when the row does not exist.

type RequestRepository interface {
	Create(ctx context.Context, req *domain.EquipmentRequest) error
	GetByID(ctx context.Context, id int64) (*domain.EquipmentRequest, error)
	// GetForUpdate reads the row and holds a write lock on it until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.EquipmentRequest, error)
	Update(ctx context.Context, req *domain.EquipmentRequest) error
}

type EquipmentRepository interface {
	Create(ctx context.Context, eq *domain.Equipment) error
	GetByID(ctx context.Context, id int64) (*domain.Equipment, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Equipment, error)
	Update(ctx context.Context, eq *domain.Equipment) error
}

// HistoryCursor is the keyset position of the last entry of a page.
type HistoryCursor struct {
	CreatedAt time.Time
	ID        int64
}

type HistoryQuery struct {
	SubjectKind domain.SubjectKind
	SubjectID   int64
	Order       domain.SortOrder
	After       *HistoryCursor
	Limit       int
}

// HistoryRepository is append-only.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) error
	List(ctx context.Context, q HistoryQuery) ([]domain.HistoryEntry, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, ev *domain.TransitionEvent) error
	// ListPending returns unpublished events with fewer than maxAttempts attempts, oldest first.
	ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.TransitionEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	PurgePublished(ctx context.Context, before time.Time) (int64, error)
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Requests() RequestRepository
	Equipment() EquipmentRepository
	History() HistoryRepository
	Outbox() OutboxRepository
}

// TxManager runs fn in a transaction. A nil return commits; an error or panic rolls back.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store gives non-transactional access to the repositories plus transactions.
type Store interface {
	Tx
	TxManager
}
