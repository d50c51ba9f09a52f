package domain

import "time"

// Shipment lifecycle status. Transitions between statuses are decided
// exclusively by the transition engine; see services.Decide.
type Status string

const (
	StatusPlanned            Status = "planned"
	StatusAssigned           Status = "assigned"
	StatusEnRouteLoading     Status = "en_route_loading"
	StatusInLoadingZone      Status = "in_loading_zone"
	StatusEnRouteDestination Status = "en_route_destination"
	StatusInUnloadingZone    Status = "in_unloading_zone"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Substatus refines a status within its phase.
type Substatus string

const (
	SubstatusToStart            Substatus = "to_start"
	SubstatusWaitingLoading     Substatus = "waiting_loading"
	SubstatusLoading            Substatus = "loading"
	SubstatusLoadingComplete    Substatus = "loading_complete"
	SubstatusHeadingToUnload    Substatus = "heading_to_unload"
	SubstatusWaitingUnloading   Substatus = "waiting_unloading"
	SubstatusUnloading          Substatus = "unloading"
	SubstatusUnloadingComplete  Substatus = "unloading_complete"
	SubstatusDeliveredConfirmed Substatus = "delivered_confirmed"
)

// IsTerminal reports whether a shipment in this status accepts no
// further status mutation.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Shipment is the unit of work tracked from dispatch to delivery.
// Mutated only by the transition engine or by chat-intent-driven
// status changes; never physically deleted.
type Shipment struct {
	ID           int64
	ExternalCode string
	TenantID     int64
	UnitID       string
	DriverID     string
	DriverName   string
	ChannelID    string
	Status       Status
	Substatus    Substatus
	CreatedAt    time.Time
	StartedAt    *time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Tenant owns shipments and configures where their webhooks go.
type Tenant struct {
	ID              int64
	Name            string
	WebhookURL      string
	WebhooksEnabled bool
}
