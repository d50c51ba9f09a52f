package dto

import (
	"time"

	"shipment-tracking-service/internal/domain"
)

type CreateShipmentRequest struct {
	ExternalCode string `json:"external_code"`
	TenantID     int64  `json:"tenant_id"`
	UnitID       string `json:"unit_id"`
	DriverID     string `json:"driver_id"`
	DriverName   string `json:"driver_name"`
	ChannelID    string `json:"channel_id"`
}

type ShipmentResponse struct {
	ID           int64      `json:"id"`
	ExternalCode string     `json:"external_code"`
	TenantID     int64      `json:"tenant_id"`
	UnitID       string     `json:"unit_id"`
	DriverID     string     `json:"driver_id"`
	DriverName   string     `json:"driver_name"`
	ChannelID    string     `json:"channel_id"`
	Status       string     `json:"status"`
	Substatus    string     `json:"substatus"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func ShipmentFromDomain(s *domain.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:           s.ID,
		ExternalCode: s.ExternalCode,
		TenantID:     s.TenantID,
		UnitID:       s.UnitID,
		DriverID:     s.DriverID,
		DriverName:   s.DriverName,
		ChannelID:    s.ChannelID,
		Status:       string(s.Status),
		Substatus:    string(s.Substatus),
		CreatedAt:    s.CreatedAt,
		StartedAt:    s.StartedAt,
		UpdatedAt:    s.UpdatedAt,
		CompletedAt:  s.CompletedAt,
	}
}

type ChatMessageRequest struct {
	UnitID string `json:"unit_id"`
	Text   string `json:"text"`
}

type ChatMessageResponse struct {
	Applied    bool `json:"applied"`
	NoShipment bool `json:"no_shipment"`
	Rejected   bool `json:"rejected"`
}
