package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"shipment-tracking-service/internal/api/dto"
	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/ports"
)

// AdminHandler is the operator surface: inspect the delivery audit log
// and replay dead-lettered webhooks.
type AdminHandler struct {
	Deliveries  ports.DeliveryLog
	DeadLetters ports.DeadLetterStore
}

func (h *AdminHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	filter := ports.DeliveryFilter{
		Status: domain.DeliveryStatus(q.Get("status")),
		Type:   domain.WebhookType(q.Get("type")),
	}
	if v := q.Get("shipment_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid shipment_id")
			return
		}
		filter.ShipmentID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	rows, err := h.Deliveries.ListDeliveries(r.Context(), filter)
	if err != nil {
		log.Printf("admin: list deliveries failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := make([]dto.DeliveryResponse, 0, len(rows))
	for _, d := range rows {
		res = append(res, dto.DeliveryFromDomain(d))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deliveries": res})
}

func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	rows, err := h.DeadLetters.ListDeadLetters(r.Context(), unresolvedOnly, limit)
	if err != nil {
		log.Printf("admin: list dead letters failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := make([]dto.DeadLetterResponse, 0, len(rows))
	for _, dl := range rows {
		res = append(res, dto.DeadLetterFromDomain(dl))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"dead_letters": res})
}

// Requeue resets a dead-lettered delivery to pending; the resend
// worker replays it through the normal retry path.
func (h *AdminHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.RequeueRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil || req.DeadLetterID <= 0 {
		writeError(w, r, http.StatusBadRequest, "dead_letter_id is required")
		return
	}

	delivery, err := h.DeadLetters.Requeue(r.Context(), req.DeadLetterID)
	if err != nil {
		log.Printf("admin: requeue failed dead_letter=%d: %v", req.DeadLetterID, err)
		writeError(w, r, http.StatusUnprocessableEntity, "requeue failed")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.DeliveryFromDomain(delivery))
}
