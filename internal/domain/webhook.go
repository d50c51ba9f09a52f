package domain

import "time"

// WebhookType selects the payload schema sent downstream.
type WebhookType string

const (
	WebhookStatusUpdate       WebhookType = "status_update"
	WebhookSpeedViolation     WebhookType = "speed_violation"
	WebhookGeofenceTransition WebhookType = "geofence_transition"
	WebhookRouteDeviation     WebhookType = "route_deviation"
	WebhookRouteReturn        WebhookType = "route_return"
	WebhookCommunication      WebhookType = "communication_response"
)

// DeliveryStatus is the lifecycle of one webhook delivery attempt-group.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliveryRetrying DeliveryStatus = "retrying"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
)

// WebhookDelivery is the audit row for one outbound webhook. The row
// is inserted as pending before the first network attempt so a crash
// mid-delivery always leaves a recoverable record.
type WebhookDelivery struct {
	ID          int64
	Type        WebhookType
	ShipmentID  int64
	Payload     []byte
	URL         string
	Status      DeliveryStatus
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// DeadLetter is the immutable copy of a delivery that exhausted its
// retry budget. Resolved is flipped by an operator after manual
// replay or dismissal.
type DeadLetter struct {
	ID         int64
	DeliveryID int64
	Type       WebhookType
	ShipmentID int64
	Payload    []byte
	URL        string
	Reason     string
	Attempts   int
	Resolved   bool
	CreatedAt  time.Time
}
