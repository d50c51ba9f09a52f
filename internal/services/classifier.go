package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/ports"
)

// Keyword fallback for geofences with no explicit assignment, matched
// against the zone's display name. Order matters: "descarga" contains
// "carga", so unloading keywords are checked first.
var roleKeywords = []struct {
	role     domain.GeofenceRole
	keywords []string
}{
	{domain.RoleUnloading, []string{"descarga", "unload", "destino", "destination"}},
	{domain.RoleLoading, []string{"carga", "load", "origen carga"}},
	{domain.RoleRoute, []string{"ruta", "route", "corredor", "corridor"}},
	{domain.RoleDepot, []string{"deposito", "depósito", "depot", "base"}},
	{domain.RoleOrigin, []string{"origen", "origin"}},
	{domain.RoleWaypoint, []string{"punto", "waypoint", "checkpoint"}},
}

// ClassifyGeofence resolves the semantic role a geofence plays for a
// shipment. The primary path is the per-shipment assignment table; a
// missing assignment degrades to keyword matching on the zone name.
// RoleUnknown means the event should change nothing.
func ClassifyGeofence(
	ctx context.Context,
	repo ports.GeofenceRepository,
	shipment *domain.Shipment,
	geofenceID string,
) (domain.GeofenceRole, error) {
	assignment, err := repo.FindAssignment(ctx, shipment.ID, geofenceID)
	if err != nil {
		return domain.RoleUnknown, fmt.Errorf("classify geofence: find assignment shipment=%d zone=%s: %w",
			shipment.ID, geofenceID, err)
	}
	if assignment != nil {
		return assignment.Role, nil
	}

	zone, err := repo.GetGeofence(ctx, geofenceID)
	if err != nil {
		return domain.RoleUnknown, fmt.Errorf("classify geofence: get geofence %s: %w", geofenceID, err)
	}
	if zone == nil {
		return domain.RoleUnknown, nil
	}

	name := strings.ToLower(zone.Name)
	for _, rk := range roleKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(name, kw) {
				log.Printf("classifier: degraded keyword match shipment=%d zone=%s name=%q role=%s",
					shipment.ID, geofenceID, zone.Name, rk.role)
				return rk.role, nil
			}
		}
	}

	return domain.RoleUnknown, nil
}
