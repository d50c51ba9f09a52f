package handlers

import (
	"io"
	"log"
	"net/http"
	"time"

	"shipment-tracking-service/internal/services"
)

type TelemetryHandler struct {
	Processor *services.Processor
}

// Ingest accepts one provider notification. The boundary deliberately
// absorbs validation failures with a 200: telemetry providers retry
// aggressively on non-success responses, and a malformed payload will
// not get better on redelivery.
func (h *TelemetryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	defer r.Body.Close()
	if err != nil {
		log.Printf("telemetry: read body failed: %v", err)
		writeJSON(w, r, http.StatusOK, map[string]string{"result": "ignored"})
		return
	}

	fields := services.ParseTelemetry(raw, r.Header.Get("Content-Type"))
	ev, err := services.BuildEvent(fields, raw, time.Now().UTC())
	if err != nil {
		log.Printf("telemetry: unparseable event absorbed: %v", err)
		writeJSON(w, r, http.StatusOK, map[string]string{"result": "ignored"})
		return
	}

	res, err := h.Processor.ProcessEvent(r.Context(), ev)
	if err != nil {
		log.Printf("telemetry: process event failed notification=%s: %v", ev.NotificationID, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	outcome := "applied"
	switch {
	case res.Duplicate:
		outcome = "duplicate"
	case res.NoShipment:
		outcome = "no_active_shipment"
	case res.Rejected:
		outcome = "rejected"
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"result":   outcome,
		"event_id": res.EventID,
	})
}
