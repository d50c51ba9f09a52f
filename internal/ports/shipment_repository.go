package ports

import (
	"context"
	"shipment-tracking-service/internal/domain"
)

// Port: a boundary for retrieving and mutating Shipment entities.
type ShipmentRepository interface {
	// FindActiveByUnit returns the most recently created shipment for
	// the unit whose status is not terminal, or nil when none exists.
	FindActiveByUnit(ctx context.Context, unitID string) (*domain.Shipment, error)
	GetByID(ctx context.Context, id int64) (*domain.Shipment, error)
	Create(ctx context.Context, s *domain.Shipment) (*domain.Shipment, error)
	// UpdateState writes a (status, substatus) pair. The write must
	// refuse shipments already in a terminal status at the storage
	// level and report updated=false.
	UpdateState(ctx context.Context, id int64, status domain.Status, substatus domain.Substatus) (updated bool, err error)
	GetTenant(ctx context.Context, tenantID int64) (*domain.Tenant, error)
}

// Port: geofence metadata and per-shipment role assignments.
type GeofenceRepository interface {
	FindAssignment(ctx context.Context, shipmentID int64, geofenceID string) (*domain.GeofenceAssignment, error)
	GetGeofence(ctx context.Context, geofenceID string) (*domain.Geofence, error)
}
