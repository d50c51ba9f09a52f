package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shipment-tracking-service/internal/domain"
)

// Postgres-backed implementation of the EventStore port.
type PostgresEventStore struct{ DB *sql.DB }

func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{DB: db}
}

// CreateEvent inserts the event, relying on the notification_id
// uniqueness constraint for idempotency. On conflict the pre-existing
// row is returned with created=false. There is deliberately no prior
// existence check: under concurrent duplicate delivery both callers
// attempt the insert and exactly one wins.
func (s *PostgresEventStore) CreateEvent(ctx context.Context, ev *domain.TelemetryEvent) (*domain.TelemetryEvent, bool, error) {
	insertQuery := `
	INSERT INTO telemetry_events (
		notification_id, type, shipment_id, geofence_id, unit_id,
		latitude, longitude, speed, max_speed, distance_from_route,
		event_time, source_event_id, raw_payload
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (notification_id) DO NOTHING
	RETURNING id, created_at;
	`

	row := s.DB.QueryRowContext(ctx, insertQuery,
		ev.NotificationID, string(ev.Type), ev.ShipmentID, ev.GeofenceID, ev.UnitID,
		ev.Latitude, ev.Longitude, ev.Speed, ev.MaxSpeed, ev.DistanceFromRoute,
		ev.EventTime, ev.SourceEventID, ev.RawPayload,
	)

	stored := *ev
	err := row.Scan(&stored.ID, &stored.CreatedAt)
	if err == nil {
		return &stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create event: insert notification %s: %w", ev.NotificationID, err)
	}

	// Conflict path: fetch the winner.
	existing, err := s.getByNotificationID(ctx, ev.NotificationID)
	if err != nil {
		return nil, false, fmt.Errorf("create event: load existing notification %s: %w", ev.NotificationID, err)
	}
	return existing, false, nil
}

const eventColumns = `
	id, notification_id, type, shipment_id, geofence_id, unit_id,
	latitude, longitude, speed, max_speed, distance_from_route,
	event_time, processed, source_event_id, resolved, raw_payload, created_at
`

func scanEvent(row *sql.Row) (*domain.TelemetryEvent, error) {
	var ev domain.TelemetryEvent
	var typ string
	err := row.Scan(
		&ev.ID, &ev.NotificationID, &typ, &ev.ShipmentID, &ev.GeofenceID, &ev.UnitID,
		&ev.Latitude, &ev.Longitude, &ev.Speed, &ev.MaxSpeed, &ev.DistanceFromRoute,
		&ev.EventTime, &ev.Processed, &ev.SourceEventID, &ev.Resolved, &ev.RawPayload, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Type = domain.EventType(typ)
	return &ev, nil
}

func (s *PostgresEventStore) getByNotificationID(ctx context.Context, notificationID string) (*domain.TelemetryEvent, error) {
	query := `
	SELECT ` + eventColumns + `
	FROM telemetry_events
	WHERE notification_id = $1;
	`
	return scanEvent(s.DB.QueryRowContext(ctx, query, notificationID))
}

func (s *PostgresEventStore) MarkProcessed(ctx context.Context, eventID int64) error {
	query := `UPDATE telemetry_events SET processed = TRUE WHERE id = $1;`
	if _, err := s.DB.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("mark processed: event %d: %w", eventID, err)
	}
	return nil
}

// FindOpenDeviation returns the most recent unresolved route_deviation
// for the shipment, or nil when none exists.
func (s *PostgresEventStore) FindOpenDeviation(ctx context.Context, shipmentID int64) (*domain.TelemetryEvent, error) {
	query := `
	SELECT ` + eventColumns + `
	FROM telemetry_events
	WHERE shipment_id = $1 AND type = 'route_deviation' AND resolved = FALSE
	ORDER BY event_time DESC
	LIMIT 1;
	`

	ev, err := scanEvent(s.DB.QueryRowContext(ctx, query, shipmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open deviation: shipment %d: %w", shipmentID, err)
	}
	return ev, nil
}

func (s *PostgresEventStore) ResolveDeviation(ctx context.Context, eventID int64) error {
	query := `UPDATE telemetry_events SET resolved = TRUE WHERE id = $1;`
	if _, err := s.DB.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("resolve deviation: event %d: %w", eventID, err)
	}
	return nil
}
