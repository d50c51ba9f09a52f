package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shipment-tracking-service/internal/domain"
)

// Postgres-backed implementation of the ShipmentRepository port.
type PostgresShipmentRepository struct{ DB *sql.DB }

func NewPostgresShipmentRepository(db *sql.DB) *PostgresShipmentRepository {
	return &PostgresShipmentRepository{DB: db}
}

const shipmentColumns = `
	id, external_code, tenant_id, unit_id, driver_id, driver_name, channel_id,
	status, substatus, created_at, started_at, updated_at, completed_at
`

func scanShipment(row *sql.Row) (*domain.Shipment, error) {
	var s domain.Shipment
	var status, substatus string
	err := row.Scan(
		&s.ID, &s.ExternalCode, &s.TenantID, &s.UnitID, &s.DriverID, &s.DriverName, &s.ChannelID,
		&status, &substatus, &s.CreatedAt, &s.StartedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	s.Substatus = domain.Substatus(substatus)
	return &s, nil
}

// FindActiveByUnit returns the most recently created non-terminal
// shipment for the unit, or nil. Absence is a legitimate no-op for
// callers, never an error.
func (r *PostgresShipmentRepository) FindActiveByUnit(ctx context.Context, unitID string) (*domain.Shipment, error) {
	query := `
	SELECT ` + shipmentColumns + `
	FROM shipments
	WHERE unit_id = $1 AND status NOT IN ('completed', 'cancelled')
	ORDER BY created_at DESC
	LIMIT 1;
	`

	s, err := scanShipment(r.DB.QueryRowContext(ctx, query, unitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active shipment: unit %s: %w", unitID, err)
	}
	return s, nil
}

func (r *PostgresShipmentRepository) GetByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	query := `
	SELECT ` + shipmentColumns + `
	FROM shipments
	WHERE id = $1;
	`

	s, err := scanShipment(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shipment %d: %w", id, err)
	}
	return s, nil
}

func (r *PostgresShipmentRepository) Create(ctx context.Context, s *domain.Shipment) (*domain.Shipment, error) {
	query := `
	INSERT INTO shipments (external_code, tenant_id, unit_id, driver_id, driver_name, channel_id, status, substatus)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at;
	`

	created := *s
	if created.Status == "" {
		created.Status = domain.StatusPlanned
		created.Substatus = domain.SubstatusToStart
	}

	err := r.DB.QueryRowContext(ctx, query,
		created.ExternalCode, created.TenantID, created.UnitID,
		created.DriverID, created.DriverName, created.ChannelID,
		string(created.Status), string(created.Substatus),
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create shipment %s: %w", s.ExternalCode, err)
	}

	return &created, nil
}

// UpdateState is a single-statement write that refuses terminal rows
// in the WHERE clause, so the terminal-immutability guarantee holds
// even under concurrent transitions.
func (r *PostgresShipmentRepository) UpdateState(ctx context.Context, id int64, status domain.Status, substatus domain.Substatus) (bool, error) {
	query := `
	UPDATE shipments
	SET status = $2,
	    substatus = $3,
	    updated_at = NOW(),
	    started_at = COALESCE(started_at, NOW()),
	    completed_at = CASE WHEN $2 IN ('completed', 'cancelled') THEN NOW() ELSE completed_at END
	WHERE id = $1 AND status NOT IN ('completed', 'cancelled');
	`

	res, err := r.DB.ExecContext(ctx, query, id, string(status), string(substatus))
	if err != nil {
		return false, fmt.Errorf("update shipment %d state: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update shipment %d state: rows affected: %w", id, err)
	}
	return affected == 1, nil
}

func (r *PostgresShipmentRepository) GetTenant(ctx context.Context, tenantID int64) (*domain.Tenant, error) {
	query := `
	SELECT id, name, webhook_url, webhooks_enabled
	FROM tenants
	WHERE id = $1;
	`

	var t domain.Tenant
	err := r.DB.QueryRowContext(ctx, query, tenantID).Scan(&t.ID, &t.Name, &t.WebhookURL, &t.WebhooksEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %d: %w", tenantID, err)
	}
	return &t, nil
}
