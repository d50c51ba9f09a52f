package domain

import "time"

// EventType identifies the kind of telemetry notification received
// from the tracking provider. EventRouteDeviation is derived inside
// the service (a geofence exit from a route corridor), never sent by
// the provider directly.
type EventType string

const (
	EventGeofenceEntry  EventType = "geofence_entry"
	EventGeofenceExit   EventType = "geofence_exit"
	EventSpeedViolation EventType = "speed_violation"
	EventPanicButton    EventType = "panic_button"
	EventConnectionLost EventType = "connection_lost"
	EventRouteDeviation EventType = "route_deviation"
)

// TelemetryEvent is a single provider notification, stored once per
// idempotency key (the provider's notification id) and immutable
// afterwards except for the Processed and Resolved flags.
type TelemetryEvent struct {
	ID             int64
	NotificationID string
	Type           EventType
	ShipmentID     *int64
	GeofenceID     *string
	UnitID         string
	Latitude       float64
	Longitude      float64
	Speed          float64
	MaxSpeed       float64
	// DistanceFromRoute is meters off the planned corridor, reported
	// by the provider on route exits when available.
	DistanceFromRoute float64
	EventTime         time.Time
	Processed         bool
	// SourceEventID links a derived route_deviation back to the
	// geofence_exit that produced it.
	SourceEventID *int64
	// Resolved marks a route_deviation that was later matched by a
	// route re-entry.
	Resolved   bool
	RawPayload []byte
	CreatedAt  time.Time
}
