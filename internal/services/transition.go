package services

import (
	"shipment-tracking-service/internal/domain"
)

// ViolationSeverity grades a speed violation by how far the measured
// speed exceeds the allowed maximum.
type ViolationSeverity string

const (
	SeverityLow    ViolationSeverity = "low"
	SeverityMedium ViolationSeverity = "medium"
	SeverityHigh   ViolationSeverity = "high"
)

// TransitionInput is everything the engine is allowed to look at.
// HasOpenDeviation is the one piece of history it consumes: whether an
// unresolved route_deviation exists for the shipment.
type TransitionInput struct {
	EventType        domain.EventType
	Role             domain.GeofenceRole
	Status           domain.Status
	Substatus        domain.Substatus
	Speed            float64
	MaxSpeed         float64
	HasOpenDeviation bool
}

// Outcome is the engine's decision for one trigger. Nil status fields
// mean "no state change". NotifyGraced marks notifications subject to
// the grace-period tracker; Critical notifications never are.
type Outcome struct {
	NewStatus        *domain.Status
	NewSubstatus     *domain.Substatus
	Notify           bool
	NotifyGraced     bool
	Critical         bool
	Message          string
	Webhook          domain.WebhookType
	DeriveDeviation  bool
	CorrelateReturn  bool
	Severity         ViolationSeverity
	TerminalRejected bool
}

type trigger struct {
	event domain.EventType
	role  domain.GeofenceRole
}

type rule struct {
	status          domain.Status
	substatus       domain.Substatus
	changesState    bool
	notify          bool
	notifyGraced    bool
	critical        bool
	message         string
	webhook         domain.WebhookType
	deriveDeviation bool
	correlateReturn bool
}

// The single source of truth for event-driven transitions. Triggers
// absent from the table are no-ops.
var transitionRules = map[trigger]rule{
	{domain.EventGeofenceEntry, domain.RoleLoading}: {
		changesState: true,
		status:       domain.StatusInLoadingZone,
		substatus:    domain.SubstatusWaitingLoading,
		notify:       true,
		message:      "Has llegado a la zona de carga. Confirma cuando inicies la carga.",
		webhook:      domain.WebhookGeofenceTransition,
	},
	{domain.EventGeofenceEntry, domain.RoleUnloading}: {
		changesState: true,
		status:       domain.StatusInUnloadingZone,
		substatus:    domain.SubstatusWaitingUnloading,
		notify:       true,
		message:      "Has llegado a la zona de descarga. Confirma cuando inicies la descarga.",
		webhook:      domain.WebhookGeofenceTransition,
	},
	{domain.EventGeofenceExit, domain.RoleLoading}: {
		changesState: true,
		status:       domain.StatusEnRouteDestination,
		substatus:    domain.SubstatusHeadingToUnload,
		webhook:      domain.WebhookGeofenceTransition,
	},
	{domain.EventGeofenceExit, domain.RoleRoute}: {
		notify:          true,
		notifyGraced:    true,
		message:         "Has salido de la ruta planificada. Regresa a la ruta asignada.",
		webhook:         domain.WebhookRouteDeviation,
		deriveDeviation: true,
	},
	{domain.EventGeofenceEntry, domain.RoleRoute}: {
		// Newsworthy only when it closes an open deviation; Decide
		// downgrades it to a no-op otherwise.
		webhook:         domain.WebhookRouteReturn,
		correlateReturn: true,
	},
	{domain.EventSpeedViolation, ""}: {
		notify:  true,
		message: "Exceso de velocidad detectado. Reduce la velocidad.",
		webhook: domain.WebhookSpeedViolation,
	},
	{domain.EventPanicButton, ""}: {
		notify:   true,
		critical: true,
		message:  "ALERTA: botón de pánico activado. Central notificada.",
		webhook:  domain.WebhookStatusUpdate,
	},
	{domain.EventConnectionLost, ""}: {
		notify:   true,
		critical: true,
		message:  "ALERTA: se perdió la conexión con la unidad.",
		webhook:  domain.WebhookStatusUpdate,
	},
}

// Decide maps one telemetry trigger onto an outcome. Pure: same input,
// same outcome. A shipment already in a terminal status rejects every
// trigger.
func Decide(in TransitionInput) Outcome {
	if in.Status.IsTerminal() {
		return Outcome{TerminalRejected: true}
	}

	key := trigger{event: in.EventType, role: in.Role}
	if in.EventType == domain.EventSpeedViolation ||
		in.EventType == domain.EventPanicButton ||
		in.EventType == domain.EventConnectionLost {
		// Role carries no meaning for non-geofence events.
		key.role = ""
	}

	r, ok := transitionRules[key]
	if !ok {
		return Outcome{}
	}

	// First-time route entry with nothing to close is not newsworthy.
	if r.correlateReturn && !in.HasOpenDeviation {
		return Outcome{}
	}

	out := Outcome{
		Notify:          r.notify,
		NotifyGraced:    r.notifyGraced,
		Critical:        r.critical,
		Message:         r.message,
		Webhook:         r.webhook,
		DeriveDeviation: r.deriveDeviation,
		CorrelateReturn: r.correlateReturn,
	}

	if r.changesState {
		status, substatus := r.status, r.substatus
		out.NewStatus = &status
		out.NewSubstatus = &substatus
	}

	if in.EventType == domain.EventSpeedViolation {
		out.Severity = speedSeverity(in.Speed, in.MaxSpeed)
	}

	return out
}

// Substatus refinements driven by classified driver chat intents.
// unloading_complete is the one intent that closes the shipment.
var intentRules = map[domain.Intent]rule{
	domain.IntentLoadingStarted: {
		changesState: true,
		status:       domain.StatusInLoadingZone,
		substatus:    domain.SubstatusLoading,
	},
	domain.IntentLoadingComplete: {
		changesState: true,
		status:       domain.StatusInLoadingZone,
		substatus:    domain.SubstatusLoadingComplete,
	},
	domain.IntentUnloadingStarted: {
		changesState: true,
		status:       domain.StatusInUnloadingZone,
		substatus:    domain.SubstatusUnloading,
	},
	domain.IntentUnloadingComplete: {
		changesState: true,
		status:       domain.StatusCompleted,
		substatus:    domain.SubstatusDeliveredConfirmed,
	},
}

// DecideIntent maps a classified chat intent onto an outcome. Intents
// that only refine substatus keep the current status.
func DecideIntent(intent domain.Intent, status domain.Status, substatus domain.Substatus) Outcome {
	if status.IsTerminal() {
		return Outcome{TerminalRejected: true}
	}

	r, ok := intentRules[intent]
	if !ok {
		return Outcome{}
	}

	newStatus := r.status
	if newStatus != domain.StatusCompleted {
		// Substatus-only refinement: status stays put.
		newStatus = status
	}
	newSubstatus := r.substatus

	return Outcome{
		NewStatus:    &newStatus,
		NewSubstatus: &newSubstatus,
		Webhook:      domain.WebhookStatusUpdate,
	}
}

func speedSeverity(speed, maxSpeed float64) ViolationSeverity {
	if maxSpeed <= 0 {
		return SeverityLow
	}
	over := (speed - maxSpeed) / maxSpeed
	switch {
	case over > 0.4:
		return SeverityHigh
	case over > 0.2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
