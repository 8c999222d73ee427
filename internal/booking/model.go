package booking

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotOnHold    SlotStatus = "on_hold"
	SlotBooked    SlotStatus = "booked"
)

// Appointment statuses are the clinic's user-facing Spanish labels and
// are stored verbatim.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "Agendada"
	StatusCancelled AppointmentStatus = "Cancelada"
	StatusCompleted AppointmentStatus = "Completada"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a bookable time window. Dates are YYYY-MM-DD and times are
// HH:MM strings; both orders lexicographically.
//
// Exactly one of the three field groups is populated at any time:
// nothing extra while available, HoldOwner+HoldExpiresAt while on_hold,
// AppointmentID while booked.
type Slot struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	Date            string
	StartTime       string
	EndTime         string
	DurationMinutes int
	Capacity        int
	Status          SlotStatus
	HoldOwner       *uuid.UUID
	HoldExpiresAt   *time.Time
	AppointmentID   *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Hold is a short-lived exclusive claim on one slot by one patient,
// placed while the patient fills in the booking form. A hold exists if
// and only if its slot is on_hold with a matching owner and expiry.
type Hold struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	SlotID       uuid.UUID
	DoctorName   string
	PatientName  string
	PatientPhone string
	Date         string
	StartTime    string
	EndTime      string
	Reason       *string
	Status       AppointmentStatus
	BookedBy     *uuid.UUID
	BookedByRole *Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CancelledAt  *time.Time
}

// TemplateDay is one weekday entry of a doctor's recurring availability.
type TemplateDay struct {
	Day       string `json:"day"`
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// WeeklyTemplate holds at most one entry per weekday name.
type WeeklyTemplate []TemplateDay
