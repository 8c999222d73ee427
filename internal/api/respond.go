package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/citadental/clinic-booking/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps domain errors onto HTTP statuses. Semantic
// rejections are 4xx and must not be retried as-is; transient store
// failures are 503 and may be.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, "hold_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "that slot was just taken, pick another")
	case errors.Is(err, booking.ErrHoldExpired):
		writeError(w, http.StatusConflict, "hold_expired", "the hold expired, pick another slot")
	case errors.Is(err, booking.ErrInvalidHold):
		writeError(w, http.StatusConflict, "invalid_hold", err.Error())
	case errors.Is(err, booking.ErrDuplicateSameDay):
		writeError(w, http.StatusConflict, "duplicate_same_day", "patient already has an appointment that day")
	case errors.Is(err, booking.ErrDuplicateDoctor):
		writeError(w, http.StatusConflict, "duplicate_doctor", "patient already has an appointment with this doctor")
	case errors.Is(err, booking.ErrTimeConflict):
		writeError(w, http.StatusConflict, "time_conflict", "patient has an overlapping appointment")
	case errors.Is(err, booking.ErrSelfReferralSameDay):
		writeError(w, http.StatusConflict, "self_referral_same_day", err.Error())
	case errors.Is(err, booking.ErrSlotExists):
		writeError(w, http.StatusConflict, "slot_exists", err.Error())
	case errors.Is(err, booking.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, booking.ErrCannotCancelPast):
		writeError(w, http.StatusConflict, "cannot_cancel_past", err.Error())
	case errors.Is(err, booking.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary storage error, retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
