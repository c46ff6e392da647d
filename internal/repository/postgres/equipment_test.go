package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/repository/postgres"
)

func TestEquipmentRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewEquipmentRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		eq := &domain.Equipment{SerialNumber: "SN-100", Category: "laptop", Status: domain.EquipmentStatusAvailable, CreatedAt: now, UpdatedAt: now}
		mock.ExpectQuery("INSERT INTO equipment").
			WithArgs("SN-100", "laptop", "available", nil, nil, now, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

		require.NoError(t, repo.Create(ctx, eq))
		assert.Equal(t, int64(5), eq.ID)
	})

	t.Run("Duplicate Serial", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO equipment").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "equipment_serial_number_key"})

		err := repo.Create(ctx, &domain.Equipment{SerialNumber: "SN-100"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestEquipmentRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewEquipmentRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	columns := []string{"id", "serial_number", "category", "status", "current_owner_id", "condition", "created_at", "updated_at"}

	mock.ExpectQuery("SELECT (.+) FROM equipment WHERE id = \\$1$").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(5, "SN-100", "laptop", "assigned", 7, "scratched lid", now, now))

	eq, err := repo.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.EquipmentStatusAssigned, eq.Status)
	require.NotNil(t, eq.CurrentOwnerID)
	assert.Equal(t, int64(7), *eq.CurrentOwnerID)
	assert.Equal(t, "scratched lid", *eq.Condition)
	assert.NoError(t, eq.CheckInvariants())
}

func TestEquipmentRepository_Update(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewEquipmentRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE equipment SET condition = \\$1, current_owner_id = \\$2, status = \\$3, updated_at = \\$4 WHERE id = \\$5").
		WithArgs(nil, nil, "maintenance", now, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(ctx, &domain.Equipment{ID: 5, Status: domain.EquipmentStatusMaintenance, UpdatedAt: now})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
