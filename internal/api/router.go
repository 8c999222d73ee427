package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/citadental/clinic-booking/internal/booking"
	"github.com/citadental/clinic-booking/internal/metrics"
)

// BookingService is the surface the HTTP layer needs from the booking
// core; *booking.Service implements it.
type BookingService interface {
	HoldSlot(ctx context.Context, doctorID, slotID, patientID uuid.UUID) (*booking.Hold, error)
	ReleaseHold(ctx context.Context, holdID, patientID uuid.UUID) error
	BookSlot(ctx context.Context, holdID, patientID uuid.UUID, patientPhone string, reason *string) (*booking.Appointment, error)
	BookSlotAsDoctor(ctx context.Context, actorID, doctorID, slotID, patientID uuid.UUID, reason *string) (*booking.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID, actorID uuid.UUID) error
	GenerateSlots(ctx context.Context, doctorID uuid.UUID, template booking.WeeklyTemplate, opts booking.GenerateOptions) (int, error)
	CreateSlot(ctx context.Context, doctorID uuid.UUID, date, startTime, endTime string, durationMinutes int) (*booking.Slot, error)
	DeleteSlot(ctx context.Context, doctorID, slotID uuid.UUID) error
	ListSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]booking.Slot, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]booking.Slot, error)
	SubscribeSlots(ctx context.Context, doctorID uuid.UUID, date string) (<-chan []booking.Slot, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]booking.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.Appointment, error)
}

type RouterConfig struct {
	Service     BookingService
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Logger      zerolog.Logger
	HTTPMetrics *metrics.HTTPMetrics
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.HTTPMetrics))
	r.Use(IdentityMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Patient booking flow
	r.Post("/slots/{slotID}/hold", holdSlotHandler(cfg.Service))
	r.Delete("/holds/{holdID}", releaseHoldHandler(cfg.Service))
	r.Post("/holds/{holdID}/book", bookSlotHandler(cfg.Service))

	// Doctor-side operations
	r.Post("/bookings/doctor", doctorBookingHandler(cfg.Service))
	r.Post("/doctors/{doctorID}/schedule", generateScheduleHandler(cfg.Service))
	r.Post("/doctors/{doctorID}/slots", createSlotHandler(cfg.Service))
	r.Delete("/slots/{slotID}", deleteSlotHandler(cfg.Service))

	// Shared
	r.Post("/appointments/{appointmentID}/cancel", cancelAppointmentHandler(cfg.Service))

	// Read-only listings and live updates
	r.Get("/doctors/{doctorID}/slots", listSlotsHandler(cfg.Service))
	r.Get("/doctors/{doctorID}/slots/stream", streamSlotsHandler(cfg.Service, cfg.Logger))
	r.Get("/doctors/{doctorID}/appointments", listDoctorAppointmentsHandler(cfg.Service))
	r.Get("/patients/{patientID}/appointments", listPatientAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{appointmentID}", getAppointmentHandler(cfg.Service))

	return r
}
