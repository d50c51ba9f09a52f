package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shipment-tracking-service/internal/domain"
)

// Postgres-backed implementation of the GeofenceRepository port.
type PostgresGeofenceRepository struct{ DB *sql.DB }

func NewPostgresGeofenceRepository(db *sql.DB) *PostgresGeofenceRepository {
	return &PostgresGeofenceRepository{DB: db}
}

func (r *PostgresGeofenceRepository) FindAssignment(ctx context.Context, shipmentID int64, geofenceID string) (*domain.GeofenceAssignment, error) {
	query := `
	SELECT shipment_id, geofence_id, role, sequence
	FROM geofence_assignments
	WHERE shipment_id = $1 AND geofence_id = $2;
	`

	var a domain.GeofenceAssignment
	var role string
	err := r.DB.QueryRowContext(ctx, query, shipmentID, geofenceID).
		Scan(&a.ShipmentID, &a.GeofenceID, &role, &a.Sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find assignment shipment=%d zone=%s: %w", shipmentID, geofenceID, err)
	}
	a.Role = domain.GeofenceRole(role)
	return &a, nil
}

func (r *PostgresGeofenceRepository) GetGeofence(ctx context.Context, geofenceID string) (*domain.Geofence, error) {
	query := `
	SELECT id, name
	FROM geofences
	WHERE id = $1;
	`

	var g domain.Geofence
	err := r.DB.QueryRowContext(ctx, query, geofenceID).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get geofence %s: %w", geofenceID, err)
	}
	return &g, nil
}
