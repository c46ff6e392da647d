package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository"
)

const equipmentTable = "equipment"

var equipmentColumns = []string{
	"id", "serial_number", "category", "status", "current_owner_id", "condition", "created_at", "updated_at",
}

type equipmentRepository struct {
	q querier
}

func NewEquipmentRepository(q querier) repository.EquipmentRepository {
	return &equipmentRepository{q: q}
}

func (r *equipmentRepository) Create(ctx context.Context, eq *domain.Equipment) error {
	query, args, err := psql.Insert(equipmentTable).
		Columns(equipmentColumns[1:]...).
		Values(eq.SerialNumber, eq.Category, eq.Status, eq.CurrentOwnerID, eq.Condition, eq.CreatedAt, eq.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert equipment: %w", err)
	}
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&eq.ID); err != nil {
		return classify(err)
	}
	return nil
}

func (r *equipmentRepository) GetByID(ctx context.Context, id int64) (*domain.Equipment, error) {
	return r.get(ctx, id, false)
}

func (r *equipmentRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Equipment, error) {
	return r.get(ctx, id, true)
}

func (r *equipmentRepository) get(ctx context.Context, id int64, forUpdate bool) (*domain.Equipment, error) {
	b := psql.Select(equipmentColumns...).From(equipmentTable).Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select equipment: %w", err)
	}

	var (
		eq        domain.Equipment
		owner     sql.NullInt64
		condition sql.NullString
	)
	err = r.q.QueryRowContext(ctx, query, args...).Scan(
		&eq.ID, &eq.SerialNumber, &eq.Category, &eq.Status, &owner, &condition, &eq.CreatedAt, &eq.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, domain.SubjectEquipment, id)
	}
	eq.CurrentOwnerID = nullInt64(owner)
	eq.Condition = nullString(condition)
	return &eq, nil
}

func (r *equipmentRepository) Update(ctx context.Context, eq *domain.Equipment) error {
	query, args, err := psql.Update(equipmentTable).
		SetMap(map[string]any{
			"status":           eq.Status,
			"current_owner_id": eq.CurrentOwnerID,
			"condition":        eq.Condition,
			"updated_at":       eq.UpdatedAt,
		}).
		Where(sq.Eq{"id": eq.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update equipment: %w", err)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.ErrNotFound, domain.SubjectEquipment, eq.ID, "")
	}
	return nil
}
