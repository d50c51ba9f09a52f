package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/platform/metrics"
	"shipment-tracking-service/internal/ports"
)

// ProcessResult is the outcome of one unit of work. Every variant is a
// success from the provider's point of view; retry storms from the
// telemetry provider are exactly what the no-op variants prevent.
type ProcessResult struct {
	EventID    int64
	Duplicate  bool
	NoShipment bool
	Rejected   bool
	Applied    bool
}

// Processor orchestrates one inbound telemetry event or chat message:
// store, locate, classify, decide, apply, notify, deliver.
type Processor struct {
	Events     ports.EventStore
	Shipments  ports.ShipmentRepository
	Geofences  ports.GeofenceRepository
	Notifier   ports.Notifier
	Classifier ports.IntentClassifier
	Grace      ports.GraceTracker
	Webhooks   ports.WebhookSender

	// GraceWindow throttles route-deviation chat notifications.
	GraceWindow time.Duration
}

// ProcessEvent runs the full pipeline for one normalized telemetry
// event. Storage happens before anything else so that events with no
// active shipment remain auditable.
func (p *Processor) ProcessEvent(ctx context.Context, ev *domain.TelemetryEvent) (*ProcessResult, error) {
	metrics.EventsReceivedTotal.WithLabelValues(string(ev.Type)).Inc()

	shipment, err := p.Shipments.FindActiveByUnit(ctx, ev.UnitID)
	if err != nil {
		return nil, fmt.Errorf("process event: locate shipment for unit %s: %w", ev.UnitID, err)
	}
	if shipment != nil {
		ev.ShipmentID = &shipment.ID
	}

	stored, created, err := p.Events.CreateEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("process event: store event %s: %w", ev.NotificationID, err)
	}
	if !created {
		// Idempotency contract: the duplicate is the success case.
		metrics.EventsDuplicateTotal.Inc()
		log.Printf("processor: duplicate notification id=%s event_id=%d, skipping", ev.NotificationID, stored.ID)
		return &ProcessResult{EventID: stored.ID, Duplicate: true}, nil
	}

	if shipment == nil {
		log.Printf("processor: no active shipment for unit=%s notification=%s, stored as no-op", ev.UnitID, ev.NotificationID)
		return &ProcessResult{EventID: stored.ID, NoShipment: true}, nil
	}

	in := TransitionInput{
		EventType: stored.Type,
		Status:    shipment.Status,
		Substatus: shipment.Substatus,
		Speed:     stored.Speed,
		MaxSpeed:  stored.MaxSpeed,
	}

	if stored.GeofenceID != nil {
		role, err := ClassifyGeofence(ctx, p.Geofences, shipment, *stored.GeofenceID)
		if err != nil {
			return nil, fmt.Errorf("process event: %w", err)
		}
		in.Role = role
	}

	var openDeviation *domain.TelemetryEvent
	if stored.Type == domain.EventGeofenceEntry && in.Role == domain.RoleRoute {
		openDeviation, err = p.Events.FindOpenDeviation(ctx, shipment.ID)
		if err != nil {
			return nil, fmt.Errorf("process event: find open deviation shipment=%d: %w", shipment.ID, err)
		}
		in.HasOpenDeviation = openDeviation != nil
	}

	out := Decide(in)
	if out.TerminalRejected {
		metrics.InvalidTransitionsTotal.Inc()
		log.Printf("processor: rejected transition on terminal shipment id=%d status=%s event=%s notification=%s",
			shipment.ID, shipment.Status, stored.Type, stored.NotificationID)
		return &ProcessResult{EventID: stored.ID, Rejected: true}, nil
	}

	if err := p.apply(ctx, shipment, stored, out, openDeviation); err != nil {
		return nil, fmt.Errorf("process event: %w", err)
	}

	if err := p.Events.MarkProcessed(ctx, stored.ID); err != nil {
		log.Printf("processor: mark processed event=%d failed: %v", stored.ID, err)
	}

	return &ProcessResult{EventID: stored.ID, Applied: true}, nil
}

func (p *Processor) apply(
	ctx context.Context,
	shipment *domain.Shipment,
	ev *domain.TelemetryEvent,
	out Outcome,
	openDeviation *domain.TelemetryEvent,
) error {
	if out.NewStatus != nil && out.NewSubstatus != nil {
		updated, err := p.Shipments.UpdateState(ctx, shipment.ID, *out.NewStatus, *out.NewSubstatus)
		if err != nil {
			return fmt.Errorf("update shipment %d state: %w", shipment.ID, err)
		}
		if !updated {
			// Lost a race against a concurrent terminal transition.
			metrics.InvalidTransitionsTotal.Inc()
			log.Printf("processor: state write refused, shipment=%d already terminal", shipment.ID)
			return nil
		}
		shipment.Status = *out.NewStatus
		shipment.Substatus = *out.NewSubstatus
	}

	extra := map[string]any{}

	if out.DeriveDeviation {
		derived := &domain.TelemetryEvent{
			// Deriving the key from the source notification keeps the
			// derived event idempotent under provider redelivery.
			NotificationID:    "deviation:" + ev.NotificationID,
			Type:              domain.EventRouteDeviation,
			ShipmentID:        &shipment.ID,
			GeofenceID:        ev.GeofenceID,
			UnitID:            ev.UnitID,
			Latitude:          ev.Latitude,
			Longitude:         ev.Longitude,
			DistanceFromRoute: ev.DistanceFromRoute,
			EventTime:         ev.EventTime,
			SourceEventID:     &ev.ID,
			RawPayload:        ev.RawPayload,
		}
		if _, _, err := p.Events.CreateEvent(ctx, derived); err != nil {
			return fmt.Errorf("store derived deviation for event %d: %w", ev.ID, err)
		}
		extra["deviation"] = map[string]any{
			"distance_from_route_meters": ev.DistanceFromRoute,
			"latitude":                   ev.Latitude,
			"longitude":                  ev.Longitude,
		}
	}

	if out.CorrelateReturn && openDeviation != nil {
		duration := ev.EventTime.Sub(openDeviation.EventTime)
		if err := p.Events.ResolveDeviation(ctx, openDeviation.ID); err != nil {
			return fmt.Errorf("resolve deviation %d: %w", openDeviation.ID, err)
		}
		extra["deviation"] = map[string]any{
			"deviation_event_id":         openDeviation.ID,
			"deviation_duration_seconds": int(duration.Seconds()),
		}
	}

	if out.Severity != "" {
		extra["violation"] = map[string]any{
			"detected_speed":    ev.Speed,
			"max_allowed_speed": ev.MaxSpeed,
			"severity":          string(out.Severity),
		}
	}

	if out.Webhook == domain.WebhookGeofenceTransition {
		geofence := ""
		if ev.GeofenceID != nil {
			geofence = *ev.GeofenceID
		}
		extra["transition"] = map[string]any{
			"geofence_id": geofence,
			"event_type":  string(ev.Type),
			"status":      string(shipment.Status),
			"substatus":   string(shipment.Substatus),
		}
	}

	p.notify(ctx, shipment, out)

	if out.Webhook != "" {
		p.deliver(ctx, out.Webhook, shipment.ID, extra)
	}

	return nil
}

// notify sends the decided chat text, consulting the grace tracker for
// suppressible notifications. Dispatcher failures are logged only.
func (p *Processor) notify(ctx context.Context, shipment *domain.Shipment, out Outcome) {
	if !out.Notify || shipment.ChannelID == "" {
		return
	}

	if out.NotifyGraced && !out.Critical {
		key := fmt.Sprintf("deviation:%d", shipment.ID)
		allowed, err := p.Grace.Allow(ctx, key, time.Now(), p.GraceWindow)
		if err != nil {
			log.Printf("processor: grace tracker error shipment=%d: %v", shipment.ID, err)
			return
		}
		if !allowed {
			log.Printf("processor: notification suppressed by grace period shipment=%d", shipment.ID)
			return
		}
	}

	if err := p.Notifier.SendText(ctx, shipment.ChannelID, out.Message); err != nil {
		log.Printf("processor: notify driver failed shipment=%d channel=%s: %v", shipment.ID, shipment.ChannelID, err)
	}
}

// deliver hands the webhook to the delivery subsystem. Delivery
// failures never propagate to the ingestion caller; the dead-letter
// store is the only durable failure signal.
func (p *Processor) deliver(ctx context.Context, t domain.WebhookType, shipmentID int64, extra map[string]any) {
	outcome, err := p.Webhooks.Send(ctx, t, shipmentID, extra)
	if err != nil {
		log.Printf("processor: webhook send error type=%s shipment=%d: %v", t, shipmentID, err)
		return
	}
	if !outcome.Success {
		log.Printf("processor: webhook not delivered type=%s shipment=%d reason=%s delivery=%d",
			t, shipmentID, outcome.Reason, outcome.DeliveryID)
	}
}

// ProcessChatMessage classifies a driver chat message and feeds the
// resulting intent through the same transition machinery as telemetry.
func (p *Processor) ProcessChatMessage(ctx context.Context, unitID, text string) (*ProcessResult, error) {
	shipment, err := p.Shipments.FindActiveByUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("process chat: locate shipment for unit %s: %w", unitID, err)
	}
	if shipment == nil {
		log.Printf("processor: chat message for unit=%s with no active shipment, ignored", unitID)
		return &ProcessResult{NoShipment: true}, nil
	}

	result, err := p.Classifier.Classify(ctx, text, shipment.Status, shipment.Substatus)
	if err != nil {
		return nil, fmt.Errorf("process chat: classify message: %w", err)
	}

	out := DecideIntent(result.Intent, shipment.Status, shipment.Substatus)
	if out.TerminalRejected {
		metrics.InvalidTransitionsTotal.Inc()
		log.Printf("processor: rejected chat intent on terminal shipment id=%d status=%s intent=%s",
			shipment.ID, shipment.Status, result.Intent)
		return &ProcessResult{Rejected: true}, nil
	}

	applied := false
	if out.NewStatus != nil && out.NewSubstatus != nil {
		updated, err := p.Shipments.UpdateState(ctx, shipment.ID, *out.NewStatus, *out.NewSubstatus)
		if err != nil {
			return nil, fmt.Errorf("process chat: update shipment %d state: %w", shipment.ID, err)
		}
		if !updated {
			metrics.InvalidTransitionsTotal.Inc()
			log.Printf("processor: chat state write refused, shipment=%d already terminal", shipment.ID)
			return &ProcessResult{Rejected: true}, nil
		}
		shipment.Status = *out.NewStatus
		shipment.Substatus = *out.NewSubstatus
		applied = true

		p.deliver(ctx, domain.WebhookStatusUpdate, shipment.ID, map[string]any{
			"change": map[string]any{
				"status":    string(shipment.Status),
				"substatus": string(shipment.Substatus),
				"source":    "chat_intent",
			},
		})
	}

	if result.ResponseText != "" && shipment.ChannelID != "" {
		if err := p.Notifier.SendText(ctx, shipment.ChannelID, result.ResponseText); err != nil {
			log.Printf("processor: chat reply failed shipment=%d: %v", shipment.ID, err)
		}
	}

	p.deliver(ctx, domain.WebhookCommunication, shipment.ID, map[string]any{
		"communication": map[string]any{
			"message":    text,
			"intent":     string(result.Intent),
			"confidence": result.Confidence,
			"response":   result.ResponseText,
		},
	})

	return &ProcessResult{Applied: applied}, nil
}
