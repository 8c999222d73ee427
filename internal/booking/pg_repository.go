package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it too, which keeps the SQL layer testable without a
// database.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

// classifyErr wraps infrastructure-level failures in ErrTransient so
// callers can tell retryable conditions apart from semantic
// rejections. Classes: 08 connection, 40 rollback (serialization,
// deadlock), 53 resources, 57 operator intervention.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return err
}

// Tx runs fn in a single transaction. Row locks taken by ForUpdate
// reads inside fn serialize conflicting writers; the commit either
// applies every mutation fn performed or none.
func (r *PgRepository) Tx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classifyErr(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&pgTx{tx: tx}); err != nil {
		return classifyErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Scan helpers

const slotColumns = `id, doctor_id, date, start_time, end_time, duration_minutes, capacity, status, hold_owner, hold_expires_at, appointment_id, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.DurationMinutes,
		&s.Capacity,
		&s.Status,
		&s.HoldOwner,
		&s.HoldExpiresAt,
		&s.AppointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, classifyErr(err)
	}
	return &s, nil
}

const holdColumns = `id, slot_id, doctor_id, patient_id, created_at, expires_at`

func scanHold(row pgx.Row) (*Hold, error) {
	var h Hold
	err := row.Scan(
		&h.ID,
		&h.SlotID,
		&h.DoctorID,
		&h.PatientID,
		&h.CreatedAt,
		&h.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, classifyErr(err)
	}
	return &h, nil
}

const appointmentColumns = `id, doctor_id, patient_id, slot_id, doctor_name, patient_name, patient_phone, date, start_time, end_time, reason, status, booked_by, booked_by_role, created_at, updated_at, cancelled_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.SlotID,
		&a.DoctorName,
		&a.PatientName,
		&a.PatientPhone,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.Reason,
		&a.Status,
		&a.BookedBy,
		&a.BookedByRole,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, classifyErr(err)
	}
	return &a, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, classifyErr(err)
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, classifyErr(err)
	}
	return &p, nil
}

func collectSlots(rows pgx.Rows, err error) ([]Slot, error) {
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	return result, nil
}

func collectAppointments(rows pgx.Rows, err error) ([]Appointment, error) {
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	return result, nil
}

// Shared query implementations, usable on the pool and inside a tx.

func getDoctor(ctx context.Context, q querier, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(q.QueryRow(ctx, `
		SELECT id, name, phone, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id))
}

func getPatient(ctx context.Context, q querier, id uuid.UUID) (*Patient, error) {
	return scanPatient(q.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id))
}

// Repository methods (pool-level reads and idempotent inserts)

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id))
}

func (r *PgRepository) ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	return collectSlots(r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time ASC
	`, doctorID, date))
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error) {
	return collectSlots(r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1 AND date >= $2 AND date <= $3 AND status = 'available'
		ORDER BY date ASC, start_time ASC
	`, doctorID, fromDate, toDate))
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *Slot) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO slots (id, doctor_id, date, start_time, end_time, duration_minutes, capacity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'available', now(), now())
		ON CONFLICT (doctor_id, date, start_time) DO NOTHING
	`, slot.ID, slot.DoctorID, slot.Date, slot.StartTime, slot.EndTime, slot.DurationMinutes, slot.Capacity)
	if err != nil {
		return false, classifyErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) GetHold(ctx context.Context, id uuid.UUID) (*Hold, error) {
	return scanHold(r.db.QueryRow(ctx, `
		SELECT `+holdColumns+`
		FROM holds
		WHERE id = $1
	`, id))
}

func (r *PgRepository) FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Hold, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+holdColumns+`
		FROM holds
		WHERE expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var result []Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	return result, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return collectAppointments(r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY date DESC, start_time DESC
	`, doctorID))
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return collectAppointments(r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_time DESC
	`, patientID))
}

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return getDoctor(ctx, r.db, id)
}

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return getPatient(ctx, r.db, id)
}

// pgTx implements Tx on one open transaction.

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	// Transaction-scoped advisory lock keyed on the patient; released
	// automatically at commit/rollback.
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, patientID)
	return classifyErr(err)
}

func (t *pgTx) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(t.tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (t *pgTx) SetSlotOnHold(ctx context.Context, slotID, patientID uuid.UUID, expiresAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE slots
		SET status = 'on_hold', hold_owner = $2, hold_expires_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'available'
	`, slotID, patientID, expiresAt)
	if err != nil {
		return classifyErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (t *pgTx) SetSlotBooked(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE slots
		SET status = 'booked', appointment_id = $2, hold_owner = NULL, hold_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`, slotID, appointmentID)
	if err != nil {
		return classifyErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (t *pgTx) SetSlotAvailable(ctx context.Context, slotID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE slots
		SET status = 'available', hold_owner = NULL, hold_expires_at = NULL, appointment_id = NULL, updated_at = now()
		WHERE id = $1
	`, slotID)
	if err != nil {
		return classifyErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (t *pgTx) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM slots WHERE id = $1`, slotID)
	return classifyErr(err)
}

func (t *pgTx) CreateHold(ctx context.Context, h *Hold) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO holds (id, slot_id, doctor_id, patient_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, h.ID, h.SlotID, h.DoctorID, h.PatientID, h.CreatedAt, h.ExpiresAt)
	return classifyErr(err)
}

func (t *pgTx) GetHoldForUpdate(ctx context.Context, id uuid.UUID) (*Hold, error) {
	return scanHold(t.tx.QueryRow(ctx, `
		SELECT `+holdColumns+`
		FROM holds
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (t *pgTx) DeleteHold(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM holds WHERE id = $1`, id)
	return classifyErr(err)
}

func (t *pgTx) CreateAppointment(ctx context.Context, a *Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, slot_id, doctor_name, patient_name, patient_phone, date, start_time, end_time, reason, status, booked_by, booked_by_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, a.ID, a.DoctorID, a.PatientID, a.SlotID, a.DoctorName, a.PatientName, a.PatientPhone, a.Date, a.StartTime, a.EndTime, a.Reason, a.Status, a.BookedBy, a.BookedByRole, a.CreatedAt, a.UpdatedAt)
	return classifyErr(err)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (t *pgTx) MarkAppointmentCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'Cancelada', cancelled_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'Agendada'
	`, id, at)
	if err != nil {
		return classifyErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (t *pgTx) HasScheduledWithDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND doctor_id = $2 AND status = 'Agendada'
		)
	`, patientID, doctorID).Scan(&exists)
	if err != nil {
		return false, classifyErr(err)
	}
	return exists, nil
}

func (t *pgTx) ListScheduledOnDate(ctx context.Context, patientID uuid.UUID, date string) ([]Appointment, error) {
	return collectAppointments(t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND date = $2 AND status = 'Agendada'
		ORDER BY start_time ASC
	`, patientID, date))
}

func (t *pgTx) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return getDoctor(ctx, t.tx, id)
}

func (t *pgTx) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return getPatient(ctx, t.tx, id)
}
