package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// streamSlotsHandler serves the live slot subscription as server-sent
// events: one `slots` event with the full ordered snapshot on connect
// and after every change, until the client disconnects. Clients may
// reconnect at any time.
func streamSlotsHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseURLParamUUID(w, r, "doctorID")
		if !ok {
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
			return
		}

		snapshots, err := svc.SubscribeSlots(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for slots := range snapshots {
			payload, err := json.Marshal(toSlotResponses(slots))
			if err != nil {
				logger.Error().Err(err).Msg("marshal slot snapshot")
				return
			}
			if _, err := fmt.Fprintf(w, "event: slots\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
