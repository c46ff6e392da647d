package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
)

const requestTable = "equipment_requests"

var requestColumns = []string{
	"id", "requester_id", "equipment_type", "justification", "priority", "budget_cents", "needed_by",
	"status", "team_lead_approval", "admin_approval", "approver_id", "rejection_reason", "equipment_id",
	"created_at", "updated_at",
}

type requestRepository struct {
	q querier
}

func NewRequestRepository(q querier) repository.RequestRepository {
	return &requestRepository{q: q}
}

func (r *requestRepository) Create(ctx context.Context, req *domain.EquipmentRequest) error {
	query, args, err := psql.Insert(requestTable).
		Columns(requestColumns[1:]...).
		Values(req.RequesterID, req.EquipmentType, req.Justification, req.Priority, req.BudgetCents, req.NeededBy,
			req.Status, req.TeamLeadApproval, req.AdminApproval, req.ApproverID, req.RejectionReason, req.EquipmentID,
			req.CreatedAt, req.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert request: %w", err)
	}
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&req.ID); err != nil {
		return classify(err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*domain.EquipmentRequest, error) {
	return r.get(ctx, id, "")
}

func (r *requestRepository) GetForUpdate(ctx context.Context, id int64) (*domain.EquipmentRequest, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *requestRepository) get(ctx context.Context, id int64, suffix string) (*domain.EquipmentRequest, error) {
	b := psql.Select(requestColumns...).From(requestTable).Where(sq.Eq{"id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select request: %w", err)
	}

	var (
		req                             domain.EquipmentRequest
		budget, approver, equipmentID   sql.NullInt64
		neededBy                        sql.NullTime
		rejectionReason                 sql.NullString
	)
	err = r.q.QueryRowContext(ctx, query, args...).Scan(
		&req.ID, &req.RequesterID, &req.EquipmentType, &req.Justification, &req.Priority, &budget, &neededBy,
		&req.Status, &req.TeamLeadApproval, &req.AdminApproval, &approver, &rejectionReason, &equipmentID,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, domain.SubjectRequest, id)
	}
	req.BudgetCents = nullInt64(budget)
	req.NeededBy = nullTime(neededBy)
	req.ApproverID = nullInt64(approver)
	req.RejectionReason = nullString(rejectionReason)
	req.EquipmentID = nullInt64(equipmentID)
	return &req, nil
}

func (r *requestRepository) Update(ctx context.Context, req *domain.EquipmentRequest) error {
	query, args, err := psql.Update(requestTable).
		SetMap(map[string]any{
			"status":             req.Status,
			"team_lead_approval": req.TeamLeadApproval,
			"admin_approval":     req.AdminApproval,
			"approver_id":        req.ApproverID,
			"rejection_reason":   req.RejectionReason,
			"equipment_id":       req.EquipmentID,
			"updated_at":         req.UpdatedAt,
		}).
		Where(sq.Eq{"id": req.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.ErrNotFound, domain.SubjectRequest, req.ID, "")
	}
	return nil
}
