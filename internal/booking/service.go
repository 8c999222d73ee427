package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/citadental/clinic-booking/internal/metrics"
)

const (
	// DefaultHoldTTL is how long a patient may sit on a held slot
	// before it is reclaimed.
	DefaultHoldTTL = 2 * time.Minute

	DefaultSlotDurationMinutes = 30
	DefaultHorizonDays         = 14

	// expiryBatchSize caps how many expired holds one reaper pass
	// reclaims.
	expiryBatchSize = 200
)

type Config struct {
	HoldTTL             time.Duration
	SlotDurationMinutes int
	HorizonDays         int
	Location            *time.Location
}

func (c Config) withDefaults() Config {
	if c.HoldTTL <= 0 {
		c.HoldTTL = DefaultHoldTTL
	}
	if c.SlotDurationMinutes <= 0 {
		c.SlotDurationMinutes = DefaultSlotDurationMinutes
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Service implements the slot reservation state machine. All
// correctness rests on the repository's transaction guarantees; the
// service holds no locks of its own, so any number of replicas may run
// concurrently.
type Service struct {
	repo     Repository
	notifier Notifier
	metrics  *metrics.BookingMetrics
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, m *metrics.BookingMetrics, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// HoldSlot places a 2-minute exclusive claim on an available slot.
// The slot is re-read under a row lock inside the transaction, so of
// two concurrent attempts exactly one wins; the other sees
// ErrSlotUnavailable.
func (s *Service) HoldSlot(ctx context.Context, doctorID, slotID, patientID uuid.UUID) (*Hold, error) {
	now := s.now()
	hold := &Hold{
		ID:        uuid.New(),
		SlotID:    slotID,
		DoctorID:  doctorID,
		PatientID: patientID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.HoldTTL),
	}

	var date string
	err := s.repo.Tx(ctx, func(tx Tx) error {
		slot, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.DoctorID != doctorID {
			return ErrInvalidHold
		}
		if slot.Status != SlotAvailable {
			return ErrSlotUnavailable
		}
		if err := tx.CreateHold(ctx, hold); err != nil {
			return fmt.Errorf("create hold: %w", err)
		}
		if err := tx.SetSlotOnHold(ctx, slotID, patientID, hold.ExpiresAt); err != nil {
			return fmt.Errorf("mark slot on hold: %w", err)
		}
		date = slot.Date
		return nil
	})
	if err != nil {
		s.metrics.ObserveHold(outcomeLabel(err))
		return nil, err
	}

	s.metrics.ObserveHold("ok")
	s.slotsChanged(ctx, doctorID, date)
	return hold, nil
}

// ReleaseHold lets a patient abandon their own pending hold. Releasing
// a hold that is already gone is a no-op.
func (s *Service) ReleaseHold(ctx context.Context, holdID, patientID uuid.UUID) error {
	var doctorID uuid.UUID
	var date string

	err := s.repo.Tx(ctx, func(tx Tx) error {
		hold, err := tx.GetHoldForUpdate(ctx, holdID)
		if errors.Is(err, ErrHoldNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if hold.PatientID != patientID {
			return ErrInvalidHold
		}
		return s.revertHold(ctx, tx, hold, &doctorID, &date)
	})
	if err != nil {
		return err
	}
	if date != "" {
		s.slotsChanged(ctx, doctorID, date)
	}
	return nil
}

// revertHold deletes a hold and returns its slot to available, but
// only if the slot is still held by the same patient; the slot may
// have already moved on.
func (s *Service) revertHold(ctx context.Context, tx Tx, hold *Hold, doctorID *uuid.UUID, date *string) error {
	if err := tx.DeleteHold(ctx, hold.ID); err != nil {
		return fmt.Errorf("delete hold: %w", err)
	}
	slot, err := tx.GetSlotForUpdate(ctx, hold.SlotID)
	if errors.Is(err, ErrSlotNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if slot.Status == SlotOnHold && slot.HoldOwner != nil && *slot.HoldOwner == hold.PatientID {
		if err := tx.SetSlotAvailable(ctx, slot.ID); err != nil {
			return fmt.Errorf("reopen slot: %w", err)
		}
		*doctorID = slot.DoctorID
		*date = slot.Date
	}
	return nil
}

// ExpireHolds reclaims slots from holds past their expiry. Intended to
// be called periodically by the reaper worker; each hold is reverted
// in its own transaction that re-checks ownership, so a racing booking
// or release is never clobbered. Returns the number reclaimed.
func (s *Service) ExpireHolds(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.repo.FindExpiredHolds(ctx, now, expiryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find expired holds: %w", err)
	}

	reclaimed := 0
	for _, hold := range expired {
		var doctorID uuid.UUID
		var date string

		err := s.repo.Tx(ctx, func(tx Tx) error {
			h, err := tx.GetHoldForUpdate(ctx, hold.ID)
			if errors.Is(err, ErrHoldNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if h.ExpiresAt.After(now) {
				// Hold was re-issued under the same id; leave it.
				return nil
			}
			return s.revertHold(ctx, tx, h, &doctorID, &date)
		})
		if err != nil {
			s.logger.Error().Err(err).Str("hold_id", hold.ID.String()).Msg("failed to reclaim expired hold")
			continue
		}
		if date != "" {
			reclaimed++
			s.metrics.ObserveHoldExpired()
			s.slotsChanged(ctx, doctorID, date)
		}
	}
	return reclaimed, nil
}

// BookSlot converts a valid, unexpired hold into a confirmed
// appointment. The whole operation is one transaction spanning the
// hold, the slot, and the appointment: every precondition and every
// patient-level constraint is re-checked inside it, and a rejection
// leaves all three records untouched.
func (s *Service) BookSlot(ctx context.Context, holdID, patientID uuid.UUID, patientPhone string, reason *string) (*Appointment, error) {
	now := s.now()
	var appt *Appointment
	var expired bool
	var doctorID uuid.UUID
	var date string

	err := s.repo.Tx(ctx, func(tx Tx) error {
		if err := tx.LockPatient(ctx, patientID); err != nil {
			return fmt.Errorf("lock patient: %w", err)
		}

		hold, err := tx.GetHoldForUpdate(ctx, holdID)
		if errors.Is(err, ErrHoldNotFound) {
			return ErrHoldExpired
		}
		if err != nil {
			return err
		}
		if hold.PatientID != patientID {
			return ErrInvalidHold
		}
		if now.After(hold.ExpiresAt) {
			// Opportunistic cleanup: commit the revert, then report
			// expiry to the caller.
			expired = true
			return s.revertHold(ctx, tx, hold, &doctorID, &date)
		}

		slot, err := tx.GetSlotForUpdate(ctx, hold.SlotID)
		if err != nil {
			return err
		}
		if slot.Status != SlotOnHold {
			return ErrSlotUnavailable
		}

		if err := s.checkPatientConstraints(ctx, tx, patientID, slot); err != nil {
			return err
		}

		doctor, err := tx.GetDoctor(ctx, slot.DoctorID)
		if err != nil {
			return err
		}
		patient, err := tx.GetPatient(ctx, patientID)
		if err != nil {
			return err
		}

		appt = &Appointment{
			ID:           uuid.New(),
			DoctorID:     slot.DoctorID,
			PatientID:    patientID,
			SlotID:       slot.ID,
			DoctorName:   doctor.Name,
			PatientName:  patient.Name,
			PatientPhone: patientPhone,
			Date:         slot.Date,
			StartTime:    slot.StartTime,
			EndTime:      slot.EndTime,
			Reason:       reason,
			Status:       StatusScheduled,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		if err := tx.SetSlotBooked(ctx, slot.ID, appt.ID); err != nil {
			return fmt.Errorf("mark slot booked: %w", err)
		}
		if err := tx.DeleteHold(ctx, holdID); err != nil {
			return fmt.Errorf("delete hold: %w", err)
		}
		doctorID = slot.DoctorID
		date = slot.Date
		return nil
	})
	if err != nil {
		s.metrics.ObserveBooking(outcomeLabel(err), string(RolePatient))
		return nil, err
	}
	if expired {
		if date != "" {
			s.slotsChanged(ctx, doctorID, date)
		}
		s.metrics.ObserveBooking(outcomeLabel(ErrHoldExpired), string(RolePatient))
		return nil, ErrHoldExpired
	}

	s.metrics.ObserveBooking("ok", string(RolePatient))
	s.slotsChanged(ctx, doctorID, date)
	return appt, nil
}

// BookSlotAsDoctor books an available slot on behalf of a patient, for
// referrals and follow-ups. There is no hold step: the doctor operates
// directly on an available slot, and the acting doctor is recorded on
// the appointment. The patient-level constraints still apply.
func (s *Service) BookSlotAsDoctor(ctx context.Context, actorID, doctorID, slotID, patientID uuid.UUID, reason *string) (*Appointment, error) {
	now := s.now()
	var appt *Appointment
	var date string

	err := s.repo.Tx(ctx, func(tx Tx) error {
		if err := tx.LockPatient(ctx, patientID); err != nil {
			return fmt.Errorf("lock patient: %w", err)
		}

		slot, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.DoctorID != doctorID {
			return ErrInvalidHold
		}
		if slot.Status != SlotAvailable {
			return ErrSlotUnavailable
		}

		sameDay, err := tx.ListScheduledOnDate(ctx, patientID, slot.Date)
		if err != nil {
			return fmt.Errorf("check same-day appointments: %w", err)
		}
		if len(sameDay) > 0 {
			if actorID == doctorID && anyWithDoctor(sameDay, doctorID) {
				return ErrSelfReferralSameDay
			}
			return ErrDuplicateSameDay
		}
		if err := s.checkPatientConstraints(ctx, tx, patientID, slot); err != nil {
			return err
		}

		doctor, err := tx.GetDoctor(ctx, doctorID)
		if err != nil {
			return err
		}
		patient, err := tx.GetPatient(ctx, patientID)
		if err != nil {
			return err
		}

		actor := actorID
		role := RoleDoctor
		appt = &Appointment{
			ID:           uuid.New(),
			DoctorID:     doctorID,
			PatientID:    patientID,
			SlotID:       slot.ID,
			DoctorName:   doctor.Name,
			PatientName:  patient.Name,
			PatientPhone: patient.Phone,
			Date:         slot.Date,
			StartTime:    slot.StartTime,
			EndTime:      slot.EndTime,
			Reason:       reason,
			Status:       StatusScheduled,
			BookedBy:     &actor,
			BookedByRole: &role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		if err := tx.SetSlotBooked(ctx, slot.ID, appt.ID); err != nil {
			return fmt.Errorf("mark slot booked: %w", err)
		}
		date = slot.Date
		return nil
	})
	if err != nil {
		s.metrics.ObserveBooking(outcomeLabel(err), string(RoleDoctor))
		return nil, err
	}

	s.metrics.ObserveBooking("ok", string(RoleDoctor))
	s.slotsChanged(ctx, doctorID, date)
	return appt, nil
}

// checkPatientConstraints enforces the patient-level scheduling rules,
// most specific first: same-day, then same-doctor, then time overlap.
// The same-day rule subsumes the overlap rule for same-date bookings;
// both run anyway.
func (s *Service) checkPatientConstraints(ctx context.Context, tx Tx, patientID uuid.UUID, slot *Slot) error {
	sameDay, err := tx.ListScheduledOnDate(ctx, patientID, slot.Date)
	if err != nil {
		return fmt.Errorf("check same-day appointments: %w", err)
	}
	if len(sameDay) > 0 {
		return ErrDuplicateSameDay
	}

	withDoctor, err := tx.HasScheduledWithDoctor(ctx, patientID, slot.DoctorID)
	if err != nil {
		return fmt.Errorf("check same-doctor appointments: %w", err)
	}
	if withDoctor {
		return ErrDuplicateDoctor
	}

	for _, a := range sameDay {
		if timesOverlap(slot.StartTime, slot.EndTime, a.StartTime, a.EndTime) {
			return ErrTimeConflict
		}
	}
	return nil
}

func anyWithDoctor(appts []Appointment, doctorID uuid.UUID) bool {
	for _, a := range appts {
		if a.DoctorID == doctorID {
			return true
		}
	}
	return false
}

// CancelAppointment cancels a scheduled appointment and reopens its
// slot, in one transaction. Either the patient or the doctor on the
// appointment may cancel; past appointments cannot be cancelled.
// Cancelling an already-cancelled appointment is a no-op.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID, actorID uuid.UUID) error {
	now := s.now()
	var doctorID uuid.UUID
	var date string

	err := s.repo.Tx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if actorID != appt.PatientID && actorID != appt.DoctorID {
			return ErrPermissionDenied
		}
		if appt.Status == StatusCancelled {
			return nil
		}
		if appt.Status == StatusCompleted || startsBefore(appt.Date, appt.StartTime, now, s.cfg.Location) {
			return ErrCannotCancelPast
		}

		if err := tx.MarkAppointmentCancelled(ctx, appointmentID, now); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		slot, err := tx.GetSlotForUpdate(ctx, appt.SlotID)
		if errors.Is(err, ErrSlotNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if slot.Status == SlotBooked && slot.AppointmentID != nil && *slot.AppointmentID == appt.ID {
			if err := tx.SetSlotAvailable(ctx, slot.ID); err != nil {
				return fmt.Errorf("reopen slot: %w", err)
			}
			doctorID = slot.DoctorID
			date = slot.Date
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveCancellation(outcomeLabel(err))
		return err
	}

	s.metrics.ObserveCancellation("ok")
	if date != "" {
		s.slotsChanged(ctx, doctorID, date)
	}
	return nil
}

// CreateSlot adds a single ad-hoc slot to a doctor's agenda, outside
// the weekly template.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, date, startTime, endTime string, durationMinutes int) (*Slot, error) {
	if !validDate(date) {
		return nil, fmt.Errorf("invalid date %q", date)
	}
	start, err := clockToMinutes(startTime)
	if err != nil {
		return nil, err
	}
	end, err := clockToMinutes(endTime)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("end time %s is not after start time %s", endTime, startTime)
	}
	if durationMinutes <= 0 {
		durationMinutes = end - start
	}

	now := s.now()
	slot := &Slot{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		Date:            date,
		StartTime:       startTime,
		EndTime:         endTime,
		DurationMinutes: durationMinutes,
		Capacity:        1,
		Status:          SlotAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := s.repo.CreateSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	if !created {
		return nil, ErrSlotExists
	}
	s.slotsChanged(ctx, doctorID, date)
	return slot, nil
}

// DeleteSlot removes a doctor's own slot, but never one that is held
// or referenced by an appointment.
func (s *Service) DeleteSlot(ctx context.Context, doctorID, slotID uuid.UUID) error {
	var date string
	err := s.repo.Tx(ctx, func(tx Tx) error {
		slot, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.DoctorID != doctorID {
			return ErrPermissionDenied
		}
		if slot.Status != SlotAvailable {
			return ErrSlotUnavailable
		}
		if err := tx.DeleteSlot(ctx, slotID); err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		date = slot.Date
		return nil
	})
	if err != nil {
		return err
	}
	s.slotsChanged(ctx, doctorID, date)
	return nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetSlot(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	if !validDate(date) {
		return nil, fmt.Errorf("invalid date %q", date)
	}
	return s.repo.ListSlotsByDoctorAndDate(ctx, doctorID, date)
}

func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error) {
	if !validDate(fromDate) || !validDate(toDate) {
		return nil, fmt.Errorf("invalid date range %q..%q", fromDate, toDate)
	}
	return s.repo.ListAvailableSlots(ctx, doctorID, fromDate, toDate)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return s.repo.ListAppointmentsByDoctor(ctx, doctorID)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return s.repo.ListAppointmentsByPatient(ctx, patientID)
}

// SubscribeSlots delivers an ordered snapshot of a doctor's slots for
// one date, then a fresh snapshot after every change, until ctx is
// cancelled. Snapshots are display reads and may trail the store
// briefly.
func (s *Service) SubscribeSlots(ctx context.Context, doctorID uuid.UUID, date string) (<-chan []Slot, error) {
	if !validDate(date) {
		return nil, fmt.Errorf("invalid date %q", date)
	}
	if s.notifier == nil {
		return nil, errors.New("no notifier configured")
	}

	signals, stop, err := s.notifier.Subscribe(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("subscribe slots: %w", err)
	}

	out := make(chan []Slot, 1)
	go func() {
		defer close(out)
		defer stop()

		send := func() {
			slots, err := s.repo.ListSlotsByDoctorAndDate(ctx, doctorID, date)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Str("date", date).Msg("slot snapshot failed")
				}
				return
			}
			select {
			case out <- slots:
			case <-ctx.Done():
			}
		}

		send()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				send()
			}
		}
	}()
	return out, nil
}

func (s *Service) slotsChanged(ctx context.Context, doctorID uuid.UUID, date string) {
	if s.notifier == nil || date == "" {
		return
	}
	s.notifier.SlotsChanged(ctx, doctorID, date)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrHoldExpired):
		return "hold_expired"
	case errors.Is(err, ErrInvalidHold):
		return "invalid_hold"
	case errors.Is(err, ErrDuplicateSameDay):
		return "duplicate_same_day"
	case errors.Is(err, ErrDuplicateDoctor):
		return "duplicate_doctor"
	case errors.Is(err, ErrTimeConflict):
		return "time_conflict"
	case errors.Is(err, ErrSelfReferralSameDay):
		return "self_referral"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrCannotCancelPast):
		return "cannot_cancel_past"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
