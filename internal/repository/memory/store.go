// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized by a single mutex and work on a
// copy of the state that replaces the committed state only on success.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
)

type state struct {
	requests  map[int64]*domain.EquipmentRequest
	equipment map[int64]*domain.Equipment
	serials   map[string]int64
	history   []domain.HistoryEntry
	events    []*domain.TransitionEvent

	nextRequestID   int64
	nextEquipmentID int64
	nextHistoryID   int64
}

func newState() *state {
	return &state{
		requests:  map[int64]*domain.EquipmentRequest{},
		equipment: map[int64]*domain.Equipment{},
		serials:   map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := &state{
		requests:        make(map[int64]*domain.EquipmentRequest, len(s.requests)),
		equipment:       make(map[int64]*domain.Equipment, len(s.equipment)),
		serials:         make(map[string]int64, len(s.serials)),
		history:         slices.Clip(s.history),
		events:          make([]*domain.TransitionEvent, len(s.events)),
		nextRequestID:   s.nextRequestID,
		nextEquipmentID: s.nextEquipmentID,
		nextHistoryID:   s.nextHistoryID,
	}
	for k, v := range s.requests {
		c.requests[k] = v.Clone()
	}
	for k, v := range s.equipment {
		c.equipment[k] = v.Clone()
	}
	for k, v := range s.serials {
		c.serials[k] = v
	}
	for i, ev := range s.events {
		cp := *ev
		c.events[i] = &cp
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

var _ repository.Store = (*Store)(nil)

// RunInTx holds the store lock for the whole transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &handle{store: s, tx: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Requests() repository.RequestRepository   { return &requestRepo{handle{store: s}} }
func (s *Store) Equipment() repository.EquipmentRepository { return &equipmentRepo{handle{store: s}} }
func (s *Store) History() repository.HistoryRepository     { return &historyRepo{handle{store: s}} }
func (s *Store) Outbox() repository.OutboxRepository       { return &outboxRepo{handle{store: s}} }

// handle routes calls either to a transaction's working state or, outside a
// transaction, to the committed state under the store lock.
type handle struct {
	store *Store
	tx    *state
}

func (h *handle) do(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(h.store.st)
}

func (h *handle) Requests() repository.RequestRepository   { return &requestRepo{*h} }
func (h *handle) Equipment() repository.EquipmentRepository { return &equipmentRepo{*h} }
func (h *handle) History() repository.HistoryRepository     { return &historyRepo{*h} }
func (h *handle) Outbox() repository.OutboxRepository       { return &outboxRepo{*h} }

type requestRepo struct{ h handle }

func (r *requestRepo) Create(ctx context.Context, req *domain.EquipmentRequest) error {
	return r.h.do(func(st *state) error {
		st.nextRequestID++
		req.ID = st.nextRequestID
		st.requests[req.ID] = req.Clone()
		return nil
	})
}

func (r *requestRepo) GetByID(ctx context.Context, id int64) (*domain.EquipmentRequest, error) {
	var out *domain.EquipmentRequest
	err := r.h.do(func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return domain.NewError(domain.ErrNotFound, domain.SubjectRequest, id, "")
		}
		out = req.Clone()
		return nil
	})
	return out, err
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id int64) (*domain.EquipmentRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *requestRepo) Update(ctx context.Context, req *domain.EquipmentRequest) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.requests[req.ID]; !ok {
			return domain.NewError(domain.ErrNotFound, domain.SubjectRequest, req.ID, "")
		}
		if req.Status == domain.RequestStatusFulfilled && req.EquipmentID != nil {
			for id, other := range st.requests {
				if id != req.ID && other.Status == domain.RequestStatusFulfilled &&
					other.EquipmentID != nil && *other.EquipmentID == *req.EquipmentID {
					return domain.NewError(domain.ErrEquipmentNotAvailable, domain.SubjectEquipment, *req.EquipmentID, "")
				}
			}
		}
		st.requests[req.ID] = req.Clone()
		return nil
	})
}

type equipmentRepo struct{ h handle }

func (r *equipmentRepo) Create(ctx context.Context, eq *domain.Equipment) error {
	return r.h.do(func(st *state) error {
		if _, dup := st.serials[eq.SerialNumber]; dup {
			return &domain.WorkflowError{
				Kind:        domain.ErrInvalidInput,
				SubjectKind: domain.SubjectEquipment,
				Err:         fmt.Errorf("serial number %q already registered", eq.SerialNumber),
			}
		}
		st.nextEquipmentID++
		eq.ID = st.nextEquipmentID
		st.equipment[eq.ID] = eq.Clone()
		st.serials[eq.SerialNumber] = eq.ID
		return nil
	})
}

func (r *equipmentRepo) GetByID(ctx context.Context, id int64) (*domain.Equipment, error) {
	var out *domain.Equipment
	err := r.h.do(func(st *state) error {
		eq, ok := st.equipment[id]
		if !ok {
			return domain.NewError(domain.ErrNotFound, domain.SubjectEquipment, id, "")
		}
		out = eq.Clone()
		return nil
	})
	return out, err
}

func (r *equipmentRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Equipment, error) {
	return r.GetByID(ctx, id)
}

func (r *equipmentRepo) Update(ctx context.Context, eq *domain.Equipment) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.equipment[eq.ID]; !ok {
			return domain.NewError(domain.ErrNotFound, domain.SubjectEquipment, eq.ID, "")
		}
		st.equipment[eq.ID] = eq.Clone()
		return nil
	})
}

type historyRepo struct{ h handle }

func (r *historyRepo) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	return r.h.do(func(st *state) error {
		st.nextHistoryID++
		entry.ID = st.nextHistoryID
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.h.store.now().UTC()
		}
		st.history = append(st.history, entry.Clone())
		return nil
	})
}

func (r *historyRepo) List(ctx context.Context, q repository.HistoryQuery) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	err := r.h.do(func(st *state) error {
		for _, e := range st.history {
			if e.SubjectKind == q.SubjectKind && e.SubjectID == q.SubjectID && after(e, q) {
				out = append(out, e.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b domain.HistoryEntry) int {
		c := compareEntries(a, b)
		if q.Order == domain.NewestFirst {
			return -c
		}
		return c
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func compareEntries(a, b domain.HistoryEntry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func after(e domain.HistoryEntry, q repository.HistoryQuery) bool {
	if q.After == nil {
		return true
	}
	c := compareEntries(e, domain.HistoryEntry{CreatedAt: q.After.CreatedAt, ID: q.After.ID})
	if q.Order == domain.NewestFirst {
		return c < 0
	}
	return c > 0
}

type outboxRepo struct{ h handle }

func (r *outboxRepo) Enqueue(ctx context.Context, ev *domain.TransitionEvent) error {
	return r.h.do(func(st *state) error {
		cp := *ev
		st.events = append(st.events, &cp)
		return nil
	})
}

func (r *outboxRepo) ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.TransitionEvent, error) {
	var out []domain.TransitionEvent
	err := r.h.do(func(st *state) error {
		for _, ev := range st.events {
			if ev.PublishedAt == nil && ev.Attempts < maxAttempts {
				out = append(out, *ev)
			}
		}
		return nil
	})
	slices.SortStableFunc(out, func(a, b domain.TransitionEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *outboxRepo) find(st *state, id string) (*domain.TransitionEvent, error) {
	for _, ev := range st.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *outboxRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.h.do(func(st *state) error {
		ev, err := r.find(st, id)
		if err != nil {
			return err
		}
		ev.PublishedAt = &at
		ev.Attempts++
		ev.LastError = nil
		return nil
	})
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.h.do(func(st *state) error {
		ev, err := r.find(st, id)
		if err != nil {
			return err
		}
		ev.Attempts++
		ev.LastError = &reason
		return nil
	})
}

func (r *outboxRepo) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.h.do(func(st *state) error {
		kept := st.events[:0:0]
		for _, ev := range st.events {
			if ev.PublishedAt != nil && ev.PublishedAt.Before(before) {
				n++
				continue
			}
			kept = append(kept, ev)
		}
		st.events = kept
		return nil
	})
	return n, err
}
