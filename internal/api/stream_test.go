package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citadental/clinic-booking/internal/booking"
)

func TestStreamSlotsEndpoint(t *testing.T) {
	doctorID := uuid.New()

	svc := &stubService{
		subscribeSlots: func(ctx context.Context, gotDoctor uuid.UUID, date string) (<-chan []booking.Slot, error) {
			assert.Equal(t, doctorID, gotDoctor)
			assert.Equal(t, "2026-09-07", date)

			out := make(chan []booking.Slot, 2)
			out <- []booking.Slot{
				{ID: uuid.New(), DoctorID: gotDoctor, Date: date, StartTime: "09:00", EndTime: "09:30", Status: booking.SlotAvailable},
			}
			out <- []booking.Slot{
				{ID: uuid.New(), DoctorID: gotDoctor, Date: date, StartTime: "09:00", EndTime: "09:30", Status: booking.SlotOnHold},
			}
			close(out)
			return out, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/slots/stream?date=2026-09-07", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: slots\n"))
	assert.Contains(t, body, `"status":"available"`)
	assert.Contains(t, body, `"status":"on_hold"`)
}

func TestStreamSlotsEndpoint_MissingDate(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/doctors/"+uuid.NewString()+"/slots/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamSlotsEndpoint_InvalidDate(t *testing.T) {
	svc := &stubService{
		subscribeSlots: func(ctx context.Context, doctorID uuid.UUID, date string) (<-chan []booking.Slot, error) {
			return nil, booking.ErrSlotNotFound
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/doctors/"+uuid.NewString()+"/slots/stream?date=2026-09-07", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
