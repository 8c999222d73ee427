package booking

import "errors"

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrHoldNotFound        = errors.New("hold not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable: the slot is not in the state the attempted
	// transition requires (someone else got there first).
	ErrSlotUnavailable = errors.New("slot is no longer available")

	// ErrInvalidHold: the hold or slot does not belong to the caller,
	// or references the wrong doctor.
	ErrInvalidHold = errors.New("hold is not valid for this caller")

	// ErrHoldExpired: the hold is missing or past its expiry.
	ErrHoldExpired = errors.New("hold has expired")

	ErrDuplicateSameDay = errors.New("patient already has an appointment on this date")
	ErrDuplicateDoctor  = errors.New("patient already has an appointment with this doctor")
	ErrTimeConflict     = errors.New("patient has an overlapping appointment")

	// ErrSelfReferralSameDay: a doctor may not refer a patient to
	// themself on a day the patient already sees them.
	ErrSelfReferralSameDay = errors.New("cannot refer a patient to yourself on the same day")

	ErrPermissionDenied = errors.New("not allowed to act on this appointment")
	ErrCannotCancelPast = errors.New("appointment is in the past")

	ErrSlotExists = errors.New("slot already exists at this time")

	// ErrTransient marks infrastructure failures (store unreachable,
	// transaction conflict exhaustion). Callers may retry; every other
	// error above is semantic and must not be retried as-is.
	ErrTransient = errors.New("transient storage error")
)
