package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the Postgres schema. The UNIQUE constraint on
// telemetry_events.notification_id is load-bearing: it is the
// idempotency mechanism for duplicate provider deliveries.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createTenantsQuery := `
	CREATE TABLE IF NOT EXISTS tenants (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		webhook_url TEXT NOT NULL DEFAULT '',
		webhooks_enabled BOOLEAN NOT NULL DEFAULT TRUE
	);
	`

	createShipmentsQuery := `
	CREATE TABLE IF NOT EXISTS shipments (
		id BIGSERIAL PRIMARY KEY,
		external_code TEXT NOT NULL,
		tenant_id BIGINT NOT NULL REFERENCES tenants(id),
		unit_id TEXT NOT NULL,
		driver_id TEXT NOT NULL DEFAULT '',
		driver_name TEXT NOT NULL DEFAULT '',
		channel_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'planned',
		substatus TEXT NOT NULL DEFAULT 'to_start',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	);
	`

	createEventsQuery := `
	CREATE TABLE IF NOT EXISTS telemetry_events (
		id BIGSERIAL PRIMARY KEY,
		notification_id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		shipment_id BIGINT REFERENCES shipments(id),
		geofence_id TEXT,
		unit_id TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		speed DOUBLE PRECISION NOT NULL DEFAULT 0,
		max_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
		distance_from_route DOUBLE PRECISION NOT NULL DEFAULT 0,
		event_time TIMESTAMPTZ NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		source_event_id BIGINT REFERENCES telemetry_events(id),
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		raw_payload BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`

	createGeofencesQuery := `
	CREATE TABLE IF NOT EXISTS geofences (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	`

	createAssignmentsQuery := `
	CREATE TABLE IF NOT EXISTS geofence_assignments (
		shipment_id BIGINT NOT NULL REFERENCES shipments(id),
		geofence_id TEXT NOT NULL REFERENCES geofences(id),
		role TEXT NOT NULL,
		sequence INT NOT NULL DEFAULT 0,
		PRIMARY KEY (shipment_id, geofence_id)
	);
	`

	createDeliveriesQuery := `
	CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id BIGSERIAL PRIMARY KEY,
		type TEXT NOT NULL,
		shipment_id BIGINT NOT NULL REFERENCES shipments(id),
		payload BYTEA NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		delivered_at TIMESTAMPTZ
	);
	`

	createDeadLettersQuery := `
	CREATE TABLE IF NOT EXISTS webhook_dead_letters (
		id BIGSERIAL PRIMARY KEY,
		delivery_id BIGINT NOT NULL REFERENCES webhook_deliveries(id),
		type TEXT NOT NULL,
		shipment_id BIGINT NOT NULL,
		payload BYTEA NOT NULL,
		url TEXT NOT NULL,
		reason TEXT NOT NULL,
		attempts INT NOT NULL,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`

	createIndexesQuery := `
	CREATE INDEX IF NOT EXISTS idx_shipments_unit_status
	ON shipments(unit_id, status, created_at DESC);
	`

	createDeviationIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_events_open_deviation
	ON telemetry_events(shipment_id, event_time DESC)
	WHERE type = 'route_deviation' AND resolved = FALSE;
	`

	statements := []string{
		createTenantsQuery,
		createShipmentsQuery,
		createEventsQuery,
		createGeofencesQuery,
		createAssignmentsQuery,
		createDeliveriesQuery,
		createDeadLettersQuery,
		createIndexesQuery,
		createDeviationIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
