package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citadental/clinic-booking/internal/booking"
)

func parseURLParamUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func holdSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := requireRole(w, r, booking.RolePatient)
		if !ok {
			return
		}
		slotID, ok := parseURLParamUUID(w, r, "slotID")
		if !ok {
			return
		}

		var req HoldSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		hold, err := svc.HoldSlot(r.Context(), doctorID, slotID, patientID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, HoldSlotResponse{
			HoldID:    hold.ID,
			SlotID:    hold.SlotID,
			ExpiresAt: hold.ExpiresAt,
		})
	}
}

func releaseHoldHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := requireRole(w, r, booking.RolePatient)
		if !ok {
			return
		}
		holdID, ok := parseURLParamUUID(w, r, "holdID")
		if !ok {
			return
		}

		if err := svc.ReleaseHold(r.Context(), holdID, patientID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func bookSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := requireRole(w, r, booking.RolePatient)
		if !ok {
			return
		}
		holdID, ok := parseURLParamUUID(w, r, "holdID")
		if !ok {
			return
		}

		var req BookSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.PatientPhone == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_phone", "patient_phone is required")
			return
		}

		appt, err := svc.BookSlot(r.Context(), holdID, patientID, req.PatientPhone, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func doctorBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireRole(w, r, booking.RoleDoctor)
		if !ok {
			return
		}

		var req DoctorBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := svc.BookSlotAsDoctor(r.Context(), actorID, doctorID, slotID, patientID, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireCaller(w, r)
		if !ok {
			return
		}
		appointmentID, ok := parseURLParamUUID(w, r, "appointmentID")
		if !ok {
			return
		}

		if err := svc.CancelAppointment(r.Context(), appointmentID, actorID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func generateScheduleHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireRole(w, r, booking.RoleDoctor)
		if !ok {
			return
		}
		doctorID, ok := parseURLParamUUID(w, r, "doctorID")
		if !ok {
			return
		}
		if actorID != doctorID {
			writeError(w, http.StatusForbidden, "wrong_doctor", "doctors manage only their own schedule")
			return
		}

		var req GenerateScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		created, err := svc.GenerateSlots(r.Context(), doctorID, req.Template, req.Options)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, GenerateScheduleResponse{Created: created})
	}
}

func createSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireRole(w, r, booking.RoleDoctor)
		if !ok {
			return
		}
		doctorID, ok := parseURLParamUUID(w, r, "doctorID")
		if !ok {
			return
		}
		if actorID != doctorID {
			writeError(w, http.StatusForbidden, "wrong_doctor", "doctors manage only their own schedule")
			return
		}

		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.CreateSlot(r.Context(), doctorID, req.Date, req.StartTime, req.EndTime, req.DurationMinutes)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
	}
}

func deleteSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := requireRole(w, r, booking.RoleDoctor)
		if !ok {
			return
		}
		slotID, ok := parseURLParamUUID(w, r, "slotID")
		if !ok {
			return
		}

		if err := svc.DeleteSlot(r.Context(), doctorID, slotID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseURLParamUUID(w, r, "doctorID")
		if !ok {
			return
		}

		// ?date= for a single day, ?from=&to= for an availability range.
		date := r.URL.Query().Get("date")
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")

		var slots []booking.Slot
		var err error
		switch {
		case date != "":
			slots, err = svc.ListSlots(r.Context(), doctorID, date)
		case from != "" && to != "":
			slots, err = svc.ListAvailableSlots(r.Context(), doctorID, from, to)
		default:
			writeError(w, http.StatusBadRequest, "missing_date", "provide ?date= or ?from=&to=")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := parseURLParamUUID(w, r, "appointmentID")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), appointmentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func listDoctorAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseURLParamUUID(w, r, "doctorID")
		if !ok {
			return
		}

		appts, err := svc.ListAppointmentsByDoctor(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func listPatientAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseURLParamUUID(w, r, "patientID")
		if !ok {
			return
		}

		appts, err := svc.ListAppointmentsByPatient(r.Context(), patientID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}
