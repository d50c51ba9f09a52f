package services

import (
	"context"
	"testing"

	"shipment-tracking-service/internal/domain"
)

type fakeGeofenceRepo struct {
	assignments map[string]domain.GeofenceRole
	names       map[string]string
}

func (f *fakeGeofenceRepo) FindAssignment(ctx context.Context, shipmentID int64, geofenceID string) (*domain.GeofenceAssignment, error) {
	role, ok := f.assignments[geofenceID]
	if !ok {
		return nil, nil
	}
	return &domain.GeofenceAssignment{ShipmentID: shipmentID, GeofenceID: geofenceID, Role: role}, nil
}

func (f *fakeGeofenceRepo) GetGeofence(ctx context.Context, geofenceID string) (*domain.Geofence, error) {
	name, ok := f.names[geofenceID]
	if !ok {
		return nil, nil
	}
	return &domain.Geofence{ID: geofenceID, Name: name}, nil
}

func TestClassifyGeofenceAssignmentWins(t *testing.T) {
	repo := &fakeGeofenceRepo{
		assignments: map[string]domain.GeofenceRole{"G1": domain.RoleLoading},
		// The misleading name must not matter when an assignment exists.
		names: map[string]string{"G1": "Zona de descarga"},
	}
	shipment := &domain.Shipment{ID: 1}

	role, err := ClassifyGeofence(context.Background(), repo, shipment, "G1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != domain.RoleLoading {
		t.Errorf("role = %s, want loading", role)
	}
}

func TestClassifyGeofenceKeywordFallback(t *testing.T) {
	repo := &fakeGeofenceRepo{
		assignments: map[string]domain.GeofenceRole{},
		names: map[string]string{
			"G1": "Zona de Carga Norte",
			"G2": "Punto de descarga CDMX",
			"G3": "Corredor Ruta 57",
			"G4": "Bodega central",
		},
	}
	shipment := &domain.Shipment{ID: 1}

	tests := []struct {
		zone string
		want domain.GeofenceRole
	}{
		{"G1", domain.RoleLoading},
		{"G2", domain.RoleUnloading},
		{"G3", domain.RoleRoute},
		{"G4", domain.RoleUnknown},
	}

	for _, tt := range tests {
		role, err := ClassifyGeofence(context.Background(), repo, shipment, tt.zone)
		if err != nil {
			t.Fatalf("zone %s: unexpected error: %v", tt.zone, err)
		}
		if role != tt.want {
			t.Errorf("zone %s: role = %s, want %s", tt.zone, role, tt.want)
		}
	}
}

func TestClassifyGeofenceUnknownZone(t *testing.T) {
	repo := &fakeGeofenceRepo{assignments: map[string]domain.GeofenceRole{}, names: map[string]string{}}

	role, err := ClassifyGeofence(context.Background(), repo, &domain.Shipment{ID: 1}, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != domain.RoleUnknown {
		t.Errorf("role = %s, want unknown", role)
	}
}
