package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/citadental/clinic-booking/internal/booking"
)

type HoldSlotRequest struct {
	DoctorID string `json:"doctor_id"`
}

type HoldSlotResponse struct {
	HoldID    uuid.UUID `json:"hold_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BookSlotRequest struct {
	PatientPhone string  `json:"patient_phone"`
	Reason       *string `json:"reason,omitempty"`
}

type DoctorBookingRequest struct {
	DoctorID  string  `json:"doctor_id"`
	SlotID    string  `json:"slot_id"`
	PatientID string  `json:"patient_id"`
	Reason    *string `json:"reason,omitempty"`
}

type CreateSlotRequest struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type GenerateScheduleRequest struct {
	Template booking.WeeklyTemplate  `json:"template"`
	Options  booking.GenerateOptions `json:"options"`
}

type GenerateScheduleResponse struct {
	Created int `json:"created"`
}

type SlotResponse struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	HoldExpiresAt   *time.Time `json:"hold_expires_at,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	SlotID       uuid.UUID  `json:"slot_id"`
	DoctorName   string     `json:"doctor_name"`
	PatientName  string     `json:"patient_name"`
	PatientPhone string     `json:"patient_phone"`
	Date         string     `json:"date"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	Reason       *string    `json:"reason,omitempty"`
	Status       string     `json:"status"`
	BookedBy     *uuid.UUID `json:"booked_by,omitempty"`
	BookedByRole *string    `json:"booked_by_role,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		ID:              s.ID,
		DoctorID:        s.DoctorID,
		Date:            s.Date,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		Status:          string(s.Status),
		HoldExpiresAt:   s.HoldExpiresAt,
	}
}

func toSlotResponses(slots []booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	var role *string
	if a.BookedByRole != nil {
		r := string(*a.BookedByRole)
		role = &r
	}
	return AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		PatientID:    a.PatientID,
		SlotID:       a.SlotID,
		DoctorName:   a.DoctorName,
		PatientName:  a.PatientName,
		PatientPhone: a.PatientPhone,
		Date:         a.Date,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Reason:       a.Reason,
		Status:       string(a.Status),
		BookedBy:     a.BookedBy,
		BookedByRole: role,
		CreatedAt:    a.CreatedAt,
		CancelledAt:  a.CancelledAt,
	}
}

func toAppointmentResponses(appts []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}
