package ports

import (
	"context"
	"shipment-tracking-service/internal/domain"
	"time"
)

// Port: the driver-facing chat dispatcher. Failures are logged by
// callers and never abort the enclosing transition.
type Notifier interface {
	SendText(ctx context.Context, channelID, text string) error
}

// Port: black-box chat intent classification.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, status domain.Status, substatus domain.Substatus) (*domain.IntentResult, error)
}

// SendOutcome reports what happened to one webhook send request.
// Success=false with a reason is a normal outcome (tenant disabled,
// retries exhausted), not an error.
type SendOutcome struct {
	Success    bool
	Reason     string
	DeliveryID int64
}

// Port: the reliable webhook delivery subsystem. Extra carries the
// type-specific payload sections merged into the canonical envelope.
type WebhookSender interface {
	Send(ctx context.Context, t domain.WebhookType, shipmentID int64, extra map[string]any) (SendOutcome, error)
}

// Port: keyed, TTL-bounded notification throttle (the grace-period
// tracker). Allow returns true and records now as last-notified when
// no prior entry exists or the grace window has elapsed; otherwise it
// returns false without updating. Governs chat notifications only.
type GraceTracker interface {
	Allow(ctx context.Context, key string, now time.Time, grace time.Duration) (bool, error)
}
