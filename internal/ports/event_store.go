package ports

import (
	"context"
	"shipment-tracking-service/internal/domain"
)

// Port: append-only ledger of inbound telemetry events.
//
// CreateEvent is the idempotency boundary: the storage layer enforces
// a uniqueness constraint on the notification id, and a duplicate
// insert is reported as created=false with the pre-existing row. The
// implementation must attempt the insert and handle the conflict, not
// check existence first.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *domain.TelemetryEvent) (stored *domain.TelemetryEvent, created bool, err error)
	MarkProcessed(ctx context.Context, eventID int64) error
	// FindOpenDeviation returns the most recent unresolved
	// route_deviation event for the shipment, or nil.
	FindOpenDeviation(ctx context.Context, shipmentID int64) (*domain.TelemetryEvent, error)
	ResolveDeviation(ctx context.Context, eventID int64) error
}
