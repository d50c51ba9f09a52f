package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/platform/metrics"
	"shipment-tracking-service/internal/platform/obs"
	"shipment-tracking-service/internal/ports"
)

// Dispatcher is the reliable delivery subsystem: payload building,
// signing, audit logging, circuit breaking, bounded retries, and
// dead-lettering. It implements ports.WebhookSender.
type Dispatcher struct {
	Shipments   ports.ShipmentRepository
	Log         ports.DeliveryLog
	DeadLetters ports.DeadLetterStore
	Sender      *Sender
	Breakers    *BreakerGroup

	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// Send builds, signs, and delivers one webhook. The pending audit row
// commits before the first network attempt so a crash mid-delivery
// always leaves a recoverable record. A Success=false outcome is a
// normal result; the error return covers storage problems only.
func (d *Dispatcher) Send(
	ctx context.Context,
	t domain.WebhookType,
	shipmentID int64,
	extra map[string]any,
) (_ ports.SendOutcome, err error) {
	defer obs.Time(ctx, "delivery.Send")(&err)

	shipment, err := d.Shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return ports.SendOutcome{}, fmt.Errorf("webhook send: load shipment %d: %w", shipmentID, err)
	}
	if shipment == nil {
		return ports.SendOutcome{}, fmt.Errorf("webhook send: shipment %d not found", shipmentID)
	}

	tenant, err := d.Shipments.GetTenant(ctx, shipment.TenantID)
	if err != nil {
		return ports.SendOutcome{}, fmt.Errorf("webhook send: load tenant %d: %w", shipment.TenantID, err)
	}
	if tenant == nil || !tenant.WebhooksEnabled || tenant.WebhookURL == "" {
		return ports.SendOutcome{Success: false, Reason: "disabled"}, nil
	}

	// Serialized exactly once; the signature covers these bytes.
	body, err := buildPayload(t, tenant, shipment, extra)
	if err != nil {
		return ports.SendOutcome{}, fmt.Errorf("webhook send: build payload type=%s: %w", t, err)
	}

	record, err := d.Log.CreateDelivery(ctx, &domain.WebhookDelivery{
		Type:       t,
		ShipmentID: shipment.ID,
		Payload:    body,
		URL:        tenant.WebhookURL,
		Status:     domain.DeliveryPending,
	})
	if err != nil {
		return ports.SendOutcome{}, fmt.Errorf("webhook send: create delivery row: %w", err)
	}

	return d.attempt(ctx, record)
}

// attempt runs the retry loop for one delivery row until a 2xx, an
// exhausted budget, or context cancellation.
func (d *Dispatcher) attempt(ctx context.Context, rec *domain.WebhookDelivery) (ports.SendOutcome, error) {
	breaker := d.Breakers.For(rec.URL)
	backoff := d.BaseBackoff
	var lastErr error

	for attemptNum := 1; attemptNum <= d.MaxRetries; attemptNum++ {
		if err := ctx.Err(); err != nil {
			return ports.SendOutcome{Success: false, Reason: "cancelled", DeliveryID: rec.ID}, nil
		}

		lastErr = d.tryOnce(ctx, breaker, rec)
		if lastErr == nil {
			now := time.Now()
			if err := d.Log.MarkSent(ctx, rec.ID, now); err != nil {
				return ports.SendOutcome{}, fmt.Errorf("mark delivery %d sent: %w", rec.ID, err)
			}
			metrics.WebhooksSentTotal.WithLabelValues(string(rec.Type)).Inc()
			return ports.SendOutcome{Success: true, DeliveryID: rec.ID}, nil
		}

		if errors.Is(lastErr, ErrCircuitOpen) {
			metrics.CircuitOpenRejectionsTotal.Inc()
		}

		if err := d.Log.RecordAttempt(ctx, rec.ID, lastErr.Error()); err != nil {
			return ports.SendOutcome{}, fmt.Errorf("record attempt for delivery %d: %w", rec.ID, err)
		}
		log.Printf("delivery: attempt failed id=%d type=%s attempt=%d/%d err=%v",
			rec.ID, rec.Type, attemptNum, d.MaxRetries, lastErr)

		if attemptNum == d.MaxRetries {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ports.SendOutcome{Success: false, Reason: "cancelled", DeliveryID: rec.ID}, nil
		case <-timer.C:
		}

		backoff *= 2
		if backoff > d.MaxBackoff {
			backoff = d.MaxBackoff
		}
	}

	// Retry budget exhausted: freeze the row as failed and escalate to
	// the dead-letter store. No further automatic attempts.
	reason := "unknown"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	if err := d.Log.MarkFailed(ctx, rec.ID, reason); err != nil {
		return ports.SendOutcome{}, fmt.Errorf("mark delivery %d failed: %w", rec.ID, err)
	}

	_, err := d.DeadLetters.CreateDeadLetter(ctx, &domain.DeadLetter{
		DeliveryID: rec.ID,
		Type:       rec.Type,
		ShipmentID: rec.ShipmentID,
		Payload:    rec.Payload,
		URL:        rec.URL,
		Reason:     reason,
		Attempts:   d.MaxRetries,
	})
	if err != nil {
		return ports.SendOutcome{}, fmt.Errorf("dead-letter delivery %d: %w", rec.ID, err)
	}
	metrics.WebhooksDeadLetteredTotal.Inc()
	log.Printf("delivery: exhausted retries id=%d type=%s url=%s reason=%s", rec.ID, rec.Type, rec.URL, reason)

	return ports.SendOutcome{Success: false, Reason: "exhausted", DeliveryID: rec.ID}, nil
}

// tryOnce performs a single network attempt behind the breaker with a
// bounded per-attempt timeout. A timeout counts as a failure for both
// the retry loop and the breaker.
func (d *Dispatcher) tryOnce(ctx context.Context, breaker *Breaker, rec *domain.WebhookDelivery) error {
	if err := breaker.Allow(); err != nil {
		return err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.AttemptTimeout)
	defer cancel()

	if err := d.Sender.Post(attemptCtx, rec.URL, string(rec.Type), rec.Payload); err != nil {
		breaker.OnFailure()
		return err
	}

	breaker.OnSuccess()
	return nil
}

// ResendPending picks up pending delivery rows (requeued dead letters,
// or rows orphaned by a crash before their first attempt) and runs
// them through the normal retry path.
func (d *Dispatcher) ResendPending(ctx context.Context, olderThan time.Duration, limit int) error {
	cutoff := time.Now().Add(-olderThan)
	rows, err := d.Log.ListPending(ctx, cutoff, limit)
	if err != nil {
		return fmt.Errorf("resend pending: list: %w", err)
	}

	for _, rec := range rows {
		if _, err := d.attempt(ctx, rec); err != nil {
			return fmt.Errorf("resend pending: delivery %d: %w", rec.ID, err)
		}
	}
	return nil
}

// buildPayload assembles the canonical envelope plus the type-specific
// sections passed in extra.
func buildPayload(
	t domain.WebhookType,
	tenant *domain.Tenant,
	shipment *domain.Shipment,
	extra map[string]any,
) ([]byte, error) {
	payload := map[string]any{
		"event":     string(t),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"tenant_id": tenant.ID,
		"trip": map[string]any{
			"id":            shipment.ID,
			"external_code": shipment.ExternalCode,
			"status":        string(shipment.Status),
			"substatus":     string(shipment.Substatus),
		},
		"driver": map[string]any{
			"id":   shipment.DriverID,
			"name": shipment.DriverName,
		},
		"unit": map[string]any{
			"id": shipment.UnitID,
		},
	}
	for k, v := range extra {
		payload[k] = v
	}

	return json.Marshal(payload)
}
