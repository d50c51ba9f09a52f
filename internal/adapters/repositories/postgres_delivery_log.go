package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/ports"
)

// Postgres-backed implementation of the DeliveryLog and DeadLetterStore
// ports.
type PostgresDeliveryLog struct{ DB *sql.DB }

func NewPostgresDeliveryLog(db *sql.DB) *PostgresDeliveryLog {
	return &PostgresDeliveryLog{DB: db}
}

func (r *PostgresDeliveryLog) CreateDelivery(ctx context.Context, d *domain.WebhookDelivery) (*domain.WebhookDelivery, error) {
	query := `
	INSERT INTO webhook_deliveries (type, shipment_id, payload, url, status)
	VALUES ($1, $2, $3, $4, 'pending')
	RETURNING id, created_at;
	`

	created := *d
	created.Status = domain.DeliveryPending
	err := r.DB.QueryRowContext(ctx, query, string(d.Type), d.ShipmentID, d.Payload, d.URL).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create delivery: type=%s shipment=%d: %w", d.Type, d.ShipmentID, err)
	}
	return &created, nil
}

func (r *PostgresDeliveryLog) RecordAttempt(ctx context.Context, deliveryID int64, lastError string) error {
	query := `
	UPDATE webhook_deliveries
	SET retry_count = retry_count + 1,
	    last_error = $2,
	    status = 'retrying'
	WHERE id = $1;
	`
	if _, err := r.DB.ExecContext(ctx, query, deliveryID, lastError); err != nil {
		return fmt.Errorf("record attempt: delivery %d: %w", deliveryID, err)
	}
	return nil
}

func (r *PostgresDeliveryLog) MarkSent(ctx context.Context, deliveryID int64, deliveredAt time.Time) error {
	query := `
	UPDATE webhook_deliveries
	SET status = 'sent', delivered_at = $2
	WHERE id = $1;
	`
	if _, err := r.DB.ExecContext(ctx, query, deliveryID, deliveredAt); err != nil {
		return fmt.Errorf("mark sent: delivery %d: %w", deliveryID, err)
	}
	return nil
}

func (r *PostgresDeliveryLog) MarkFailed(ctx context.Context, deliveryID int64, lastError string) error {
	query := `
	UPDATE webhook_deliveries
	SET status = 'failed', last_error = $2
	WHERE id = $1;
	`
	if _, err := r.DB.ExecContext(ctx, query, deliveryID, lastError); err != nil {
		return fmt.Errorf("mark failed: delivery %d: %w", deliveryID, err)
	}
	return nil
}

const deliveryColumns = `
	id, type, shipment_id, payload, url, status, retry_count, last_error, created_at, delivered_at
`

func scanDeliveries(rows *sql.Rows) ([]*domain.WebhookDelivery, error) {
	out := make([]*domain.WebhookDelivery, 0, 32)
	for rows.Next() {
		var d domain.WebhookDelivery
		var typ, status string
		err := rows.Scan(
			&d.ID, &typ, &d.ShipmentID, &d.Payload, &d.URL,
			&status, &d.RetryCount, &d.LastError, &d.CreatedAt, &d.DeliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery row: %w", err)
		}
		d.Type = domain.WebhookType(typ)
		d.Status = domain.DeliveryStatus(status)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery row iteration: %w", err)
	}
	return out, nil
}

func (r *PostgresDeliveryLog) ListDeliveries(ctx context.Context, f ports.DeliveryFilter) ([]*domain.WebhookDelivery, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if f.ShipmentID != 0 {
		args = append(args, f.ShipmentID)
		where = append(where, "shipment_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, "type = $"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + deliveryColumns + " FROM webhook_deliveries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	return scanDeliveries(rows)
}

func (r *PostgresDeliveryLog) ListPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WebhookDelivery, error) {
	query := `
	SELECT ` + deliveryColumns + `
	FROM webhook_deliveries
	WHERE status = 'pending' AND created_at < $1
	ORDER BY created_at
	LIMIT $2;
	`

	rows, err := r.DB.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	return scanDeliveries(rows)
}

func (r *PostgresDeliveryLog) CreateDeadLetter(ctx context.Context, dl *domain.DeadLetter) (*domain.DeadLetter, error) {
	query := `
	INSERT INTO webhook_dead_letters (delivery_id, type, shipment_id, payload, url, reason, attempts)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at;
	`

	created := *dl
	err := r.DB.QueryRowContext(ctx, query,
		dl.DeliveryID, string(dl.Type), dl.ShipmentID, dl.Payload, dl.URL, dl.Reason, dl.Attempts,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create dead letter: delivery %d: %w", dl.DeliveryID, err)
	}
	return &created, nil
}

func (r *PostgresDeliveryLog) ListDeadLetters(ctx context.Context, unresolvedOnly bool, limit int) ([]*domain.DeadLetter, error) {
	query := `
	SELECT id, delivery_id, type, shipment_id, payload, url, reason, attempts, resolved, created_at
	FROM webhook_dead_letters
	`
	if unresolvedOnly {
		query += " WHERE resolved = FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT $1;"

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.DeadLetter, 0, 32)
	for rows.Next() {
		var dl domain.DeadLetter
		var typ string
		err := rows.Scan(
			&dl.ID, &dl.DeliveryID, &typ, &dl.ShipmentID, &dl.Payload,
			&dl.URL, &dl.Reason, &dl.Attempts, &dl.Resolved, &dl.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}
		dl.Type = domain.WebhookType(typ)
		out = append(out, &dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dead letter row iteration: %w", err)
	}
	return out, nil
}

// Requeue flips a dead letter to resolved and resets its original
// delivery to pending with a zero retry count, so the resend worker
// picks it up through the normal retry path.
func (r *PostgresDeliveryLog) Requeue(ctx context.Context, deadLetterID int64) (*domain.WebhookDelivery, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("requeue dead letter %d: begin tx: %w", deadLetterID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var deliveryID int64
	resolveQuery := `
	UPDATE webhook_dead_letters
	SET resolved = TRUE
	WHERE id = $1 AND resolved = FALSE
	RETURNING delivery_id;
	`
	err = tx.QueryRowContext(ctx, resolveQuery, deadLetterID).Scan(&deliveryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("requeue dead letter %d: not found or already resolved", deadLetterID)
	}
	if err != nil {
		return nil, fmt.Errorf("requeue dead letter %d: resolve: %w", deadLetterID, err)
	}

	resetQuery := `
	UPDATE webhook_deliveries
	SET status = 'pending', retry_count = 0, last_error = ''
	WHERE id = $1
	RETURNING ` + deliveryColumns + `;
	`

	var d domain.WebhookDelivery
	var typ, status string
	err = tx.QueryRowContext(ctx, resetQuery, deliveryID).Scan(
		&d.ID, &typ, &d.ShipmentID, &d.Payload, &d.URL,
		&status, &d.RetryCount, &d.LastError, &d.CreatedAt, &d.DeliveredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("requeue dead letter %d: reset delivery %d: %w", deadLetterID, deliveryID, err)
	}
	d.Type = domain.WebhookType(typ)
	d.Status = domain.DeliveryStatus(status)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("requeue dead letter %d: commit tx: %w", deadLetterID, err)
	}
	return &d, nil
}
