package domain

// GeofenceRole is the semantic meaning of a zone for a given shipment.
type GeofenceRole string

const (
	RoleOrigin    GeofenceRole = "origin"
	RoleLoading   GeofenceRole = "loading"
	RoleUnloading GeofenceRole = "unloading"
	RoleWaypoint  GeofenceRole = "waypoint"
	RoleDepot     GeofenceRole = "depot"
	RoleRoute     GeofenceRole = "route"
	RoleUnknown   GeofenceRole = "unknown"
)

// Geofence is a named zone defined in the tracking provider.
type Geofence struct {
	ID   string
	Name string
}

// GeofenceAssignment binds a geofence to a shipment with a role and a
// visiting order. Its absence triggers the name-keyword fallback in
// the classifier.
type GeofenceAssignment struct {
	ShipmentID int64
	GeofenceID string
	Role       GeofenceRole
	Sequence   int
}
