package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"shipment-tracking-service/internal/api/dto"
	"shipment-tracking-service/internal/services"
)

type ChatHandler struct {
	Processor *services.Processor
}

// Message handles one inbound driver chat message.
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.ChatMessageRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	if strings.TrimSpace(req.UnitID) == "" || strings.TrimSpace(req.Text) == "" {
		writeError(w, r, http.StatusBadRequest, "unit_id and text are required")
		return
	}

	res, err := h.Processor.ProcessChatMessage(r.Context(), req.UnitID, req.Text)
	if err != nil {
		log.Printf("chat: process message failed unit=%s: %v", req.UnitID, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ChatMessageResponse{
		Applied:    res.Applied,
		NoShipment: res.NoShipment,
		Rejected:   res.Rejected,
	})
}
