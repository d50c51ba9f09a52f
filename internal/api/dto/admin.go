package dto

import (
	"encoding/json"
	"time"

	"shipment-tracking-service/internal/domain"
)

type DeliveryResponse struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	ShipmentID  int64           `json:"shipment_id"`
	Payload     json.RawMessage `json:"payload"`
	URL         string          `json:"url"`
	Status      string          `json:"status"`
	RetryCount  int             `json:"retry_count"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

func DeliveryFromDomain(d *domain.WebhookDelivery) DeliveryResponse {
	return DeliveryResponse{
		ID:          d.ID,
		Type:        string(d.Type),
		ShipmentID:  d.ShipmentID,
		Payload:     json.RawMessage(d.Payload),
		URL:         d.URL,
		Status:      string(d.Status),
		RetryCount:  d.RetryCount,
		LastError:   d.LastError,
		CreatedAt:   d.CreatedAt,
		DeliveredAt: d.DeliveredAt,
	}
}

type DeadLetterResponse struct {
	ID         int64           `json:"id"`
	DeliveryID int64           `json:"delivery_id"`
	Type       string          `json:"type"`
	ShipmentID int64           `json:"shipment_id"`
	Payload    json.RawMessage `json:"payload"`
	URL        string          `json:"url"`
	Reason     string          `json:"reason"`
	Attempts   int             `json:"attempts"`
	Resolved   bool            `json:"resolved"`
	CreatedAt  time.Time       `json:"created_at"`
}

func DeadLetterFromDomain(dl *domain.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		ID:         dl.ID,
		DeliveryID: dl.DeliveryID,
		Type:       string(dl.Type),
		ShipmentID: dl.ShipmentID,
		Payload:    json.RawMessage(dl.Payload),
		URL:        dl.URL,
		Reason:     dl.Reason,
		Attempts:   dl.Attempts,
		Resolved:   dl.Resolved,
		CreatedAt:  dl.CreatedAt,
	}
}

type RequeueRequest struct {
	DeadLetterID int64 `json:"dead_letter_id"`
}
