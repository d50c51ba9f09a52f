package ports

import (
	"context"
	"shipment-tracking-service/internal/domain"
	"time"
)

// DeliveryFilter narrows ListDeliveries for the administrative surface.
// Zero values mean "no filter".
type DeliveryFilter struct {
	ShipmentID int64
	Status     domain.DeliveryStatus
	Type       domain.WebhookType
	Limit      int
}

// Port: audit log of outbound webhook deliveries.
type DeliveryLog interface {
	// CreateDelivery inserts the row with status pending. The insert
	// commits before any network attempt.
	CreateDelivery(ctx context.Context, d *domain.WebhookDelivery) (*domain.WebhookDelivery, error)
	// RecordAttempt bumps retry_count and stores the attempt error.
	RecordAttempt(ctx context.Context, deliveryID int64, lastError string) error
	MarkSent(ctx context.Context, deliveryID int64, deliveredAt time.Time) error
	MarkFailed(ctx context.Context, deliveryID int64, lastError string) error
	ListDeliveries(ctx context.Context, f DeliveryFilter) ([]*domain.WebhookDelivery, error)
	// ListPending returns pending rows older than cutoff, used to pick
	// up requeued dead letters.
	ListPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WebhookDelivery, error)
}

// Port: durable storage for deliveries that exhausted their retries.
type DeadLetterStore interface {
	CreateDeadLetter(ctx context.Context, dl *domain.DeadLetter) (*domain.DeadLetter, error)
	ListDeadLetters(ctx context.Context, unresolvedOnly bool, limit int) ([]*domain.DeadLetter, error)
	// Requeue resets the original delivery to pending with a zero
	// retry count and marks the dead letter resolved.
	Requeue(ctx context.Context, deadLetterID int64) (*domain.WebhookDelivery, error)
}
