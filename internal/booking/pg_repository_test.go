package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func slotRow(id, doctorID uuid.UUID, status SlotStatus) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "doctor_id", "date", "start_time", "end_time", "duration_minutes",
		"capacity", "status", "hold_owner", "hold_expires_at", "appointment_id",
		"created_at", "updated_at",
	}).AddRow(id, doctorID, "2026-09-07", "09:00", "09:30", 30, 1, status, nil, nil, nil, now, now)
}

func TestPgGetSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()
	doctorID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM slots`).
		WithArgs(slotID).
		WillReturnRows(slotRow(slotID, doctorID, SlotAvailable))

	slot, err := repo.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, slotID, slot.ID)
	assert.Equal(t, doctorID, slot.DoctorID)
	assert.Equal(t, SlotAvailable, slot.Status)
	assert.Equal(t, "2026-09-07", slot.Date)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetSlot_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM slots`).
		WithArgs(slotID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetSlot(context.Background(), slotID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestPgCreateSlot_Conflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	slot := &Slot{
		ID:              uuid.New(),
		DoctorID:        uuid.New(),
		Date:            "2026-09-07",
		StartTime:       "09:00",
		EndTime:         "09:30",
		DurationMinutes: 30,
		Capacity:        1,
	}

	// ON CONFLICT DO NOTHING reports zero rows for an existing key.
	mock.ExpectExec(`INSERT INTO slots`).
		WithArgs(slot.ID, slot.DoctorID, slot.Date, slot.StartTime, slot.EndTime, slot.DurationMinutes, slot.Capacity).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := repo.CreateSlot(context.Background(), slot)
	require.NoError(t, err)
	assert.False(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTx_HoldFlow(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()
	doctorID := uuid.New()
	patientID := uuid.New()
	holdID := uuid.New()
	expiresAt := time.Now().Add(2 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT (.+) FROM slots.+FOR UPDATE`).
		WithArgs(slotID).
		WillReturnRows(slotRow(slotID, doctorID, SlotAvailable))
	mock.ExpectExec(`INSERT INTO holds`).
		WithArgs(holdID, slotID, doctorID, patientID, pgxmock.AnyArg(), expiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE slots`).
		WithArgs(slotID, patientID, expiresAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.Tx(context.Background(), func(tx Tx) error {
		slot, err := tx.GetSlotForUpdate(context.Background(), slotID)
		if err != nil {
			return err
		}
		if slot.Status != SlotAvailable {
			return ErrSlotUnavailable
		}
		hold := &Hold{
			ID:        holdID,
			SlotID:    slotID,
			DoctorID:  doctorID,
			PatientID: patientID,
			CreatedAt: time.Now(),
			ExpiresAt: expiresAt,
		}
		if err := tx.CreateHold(context.Background(), hold); err != nil {
			return err
		}
		return tx.SetSlotOnHold(context.Background(), slotID, patientID, expiresAt)
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTx_RollbackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT (.+) FROM slots.+FOR UPDATE`).
		WithArgs(slotID).
		WillReturnRows(slotRow(slotID, uuid.New(), SlotOnHold))
	mock.ExpectRollback()

	err := repo.Tx(context.Background(), func(tx Tx) error {
		slot, err := tx.GetSlotForUpdate(context.Background(), slotID)
		if err != nil {
			return err
		}
		if slot.Status != SlotAvailable {
			return ErrSlotUnavailable
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTx_SetSlotOnHoldLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()
	patientID := uuid.New()
	expiresAt := time.Now().Add(2 * time.Minute)

	mock.ExpectBegin()
	// The guarded UPDATE matches nothing once the slot left 'available'.
	mock.ExpectExec(`UPDATE slots`).
		WithArgs(slotID, patientID, expiresAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Tx(context.Background(), func(tx Tx) error {
		return tx.SetSlotOnHold(context.Background(), slotID, patientID, expiresAt)
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestPgFindExpiredHolds(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	holdID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM holds`).
		WithArgs(now, 200).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "slot_id", "doctor_id", "patient_id", "created_at", "expires_at",
		}).AddRow(holdID, uuid.New(), uuid.New(), uuid.New(), now.Add(-3*time.Minute), now.Add(-time.Minute)))

	holds, err := repo.FindExpiredHolds(context.Background(), now, 200)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, holdID, holds[0].ID)
}

func TestClassifyErr(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	assert.ErrorIs(t, classifyErr(serialization), ErrTransient)

	tooManyConns := &pgconn.PgError{Code: "53300"}
	assert.ErrorIs(t, classifyErr(tooManyConns), ErrTransient)

	uniqueViolation := &pgconn.PgError{Code: "23505"}
	assert.NotErrorIs(t, classifyErr(uniqueViolation), ErrTransient)

	plain := errors.New("boom")
	assert.Equal(t, plain, classifyErr(plain))
	assert.Nil(t, classifyErr(nil))
}
