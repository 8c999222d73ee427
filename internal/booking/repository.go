package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the service.
// Reads outside Tx are display-only and may be eventually consistent;
// every mutation of the slot/hold/appointment triad goes through Tx.
type Repository interface {
	// Tx runs fn inside a single store transaction. The mutations fn
	// performs commit together or not at all.
	Tx(ctx context.Context, fn func(Tx) error) error

	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error)

	// CreateSlot inserts a slot at its deterministic
	// (doctor, date, startTime) key. Returns false without error when
	// the key already exists, which makes schedule generation
	// re-runnable.
	CreateSlot(ctx context.Context, slot *Slot) (bool, error)

	GetHold(ctx context.Context, id uuid.UUID) (*Hold, error)
	FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Hold, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)

	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Tx is the view of the store inside one transaction. ForUpdate reads
// lock the row so every precondition is re-checked against current
// state before any write commits.
type Tx interface {
	// LockPatient serializes transactions that evaluate patient-level
	// scheduling constraints, so two bookings by the same patient
	// cannot both pass the same-day/overlap checks.
	LockPatient(ctx context.Context, patientID uuid.UUID) error

	GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	SetSlotOnHold(ctx context.Context, slotID, patientID uuid.UUID, expiresAt time.Time) error
	SetSlotBooked(ctx context.Context, slotID, appointmentID uuid.UUID) error
	SetSlotAvailable(ctx context.Context, slotID uuid.UUID) error
	DeleteSlot(ctx context.Context, slotID uuid.UUID) error

	CreateHold(ctx context.Context, h *Hold) error
	GetHoldForUpdate(ctx context.Context, id uuid.UUID) (*Hold, error)
	DeleteHold(ctx context.Context, id uuid.UUID) error

	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	MarkAppointmentCancelled(ctx context.Context, id uuid.UUID, at time.Time) error

	// Constraint-check reads, scoped to Agendada appointments.
	HasScheduledWithDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	ListScheduledOnDate(ctx context.Context, patientID uuid.UUID, date string) ([]Appointment, error)

	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Notifier fans out slot-change signals to live subscribers. Any
// pub/sub transport satisfies the contract; delivery is best-effort
// and subscribers re-read the store on every signal.
type Notifier interface {
	SlotsChanged(ctx context.Context, doctorID uuid.UUID, date string)
	Subscribe(ctx context.Context, doctorID uuid.UUID, date string) (<-chan struct{}, func(), error)
}
