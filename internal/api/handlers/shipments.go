package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"shipment-tracking-service/internal/api/dto"
	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/ports"
)

type ShipmentHandler struct {
	Repo ports.ShipmentRepository
}

// Handle dispatches /shipments by method: POST creates, GET fetches by
// the id query parameter.
func (h *ShipmentHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.get(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ShipmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateShipmentRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	if strings.TrimSpace(req.ExternalCode) == "" || strings.TrimSpace(req.UnitID) == "" || req.TenantID == 0 {
		writeError(w, r, http.StatusBadRequest, "external_code, unit_id and tenant_id are required")
		return
	}

	created, err := h.Repo.Create(r.Context(), &domain.Shipment{
		ExternalCode: req.ExternalCode,
		TenantID:     req.TenantID,
		UnitID:       req.UnitID,
		DriverID:     req.DriverID,
		DriverName:   req.DriverName,
		ChannelID:    req.ChannelID,
		Status:       domain.StatusAssigned,
		Substatus:    domain.SubstatusToStart,
	})
	if err != nil {
		log.Printf("shipments: create failed code=%s: %v", req.ExternalCode, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ShipmentFromDomain(created))
}

func (h *ShipmentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "id query parameter is required")
		return
	}

	s, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("shipments: get failed id=%d: %v", id, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	if s == nil {
		writeError(w, r, http.StatusNotFound, "shipment not found")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ShipmentFromDomain(s))
}
