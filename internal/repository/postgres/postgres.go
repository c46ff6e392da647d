package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/repository"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Options struct {
	Isolation   sql.IsolationLevel
	LockTimeout time.Duration
}

type Store struct {
	db        *sql.DB
	opts      Options
	requests  repository.RequestRepository
	equipment repository.EquipmentRepository
	history   repository.HistoryRepository
	outbox    repository.OutboxRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sql.DB, opts Options) *Store {
	return &Store{
		db:        db,
		opts:      opts,
		requests:  NewRequestRepository(db),
		equipment: NewEquipmentRepository(db),
		history:   NewHistoryRepository(db),
		outbox:    NewOutboxRepository(db),
	}
}

func (s *Store) Requests() repository.RequestRepository   { return s.requests }
func (s *Store) Equipment() repository.EquipmentRepository { return s.equipment }
func (s *Store) History() repository.HistoryRepository     { return s.history }
func (s *Store) Outbox() repository.OutboxRepository       { return s.outbox }

type txRepos struct {
	requests  repository.RequestRepository
	equipment repository.EquipmentRepository
	history   repository.HistoryRepository
	outbox    repository.OutboxRepository
}

func (t *txRepos) Requests() repository.RequestRepository   { return t.requests }
func (t *txRepos) Equipment() repository.EquipmentRepository { return t.equipment }
func (t *txRepos) History() repository.HistoryRepository     { return t.history }
func (t *txRepos) Outbox() repository.OutboxRepository       { return t.outbox }

// RunInTx commits when fn returns nil and rolls back on error or panic.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.opts.Isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("Transaction rollback failed", "error", rbErr)
			}
		}
	}()

	if s.opts.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", classify(err))
		}
	}

	if err = fn(ctx, &txRepos{
		requests:  NewRequestRepository(tx),
		equipment: NewEquipmentRepository(tx),
		history:   NewHistoryRepository(tx),
		outbox:    NewOutboxRepository(tx),
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

const activeEquipmentIndex = "equipment_requests_active_equipment_idx"

// classify maps PostgreSQL failures onto workflow error kinds.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40001", "40P01", "55P03":
		return &domain.WorkflowError{Kind: domain.ErrConcurrencyConflict, Err: err}
	case "23505":
		if pqErr.Constraint == activeEquipmentIndex {
			return &domain.WorkflowError{Kind: domain.ErrEquipmentNotAvailable, SubjectKind: domain.SubjectEquipment, Err: err}
		}
		return &domain.WorkflowError{Kind: domain.ErrInvalidInput, Err: err}
	}
	return err
}

func notFoundOr(err error, kind domain.SubjectKind, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewError(domain.ErrNotFound, kind, id, "")
	}
	return classify(err)
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
