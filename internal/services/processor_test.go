package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/ports"
)

// In-memory event store guarding the notification-id uniqueness
// constraint the way the database does.
type fakeEventStore struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]*domain.TelemetryEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{byKey: make(map[string]*domain.TelemetryEvent)}
}

func (f *fakeEventStore) CreateEvent(ctx context.Context, ev *domain.TelemetryEvent) (*domain.TelemetryEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.byKey[ev.NotificationID]; ok {
		return existing, false, nil
	}

	f.nextID++
	stored := *ev
	stored.ID = f.nextID
	stored.CreatedAt = time.Now()
	f.byKey[ev.NotificationID] = &stored
	return &stored, true, nil
}

func (f *fakeEventStore) MarkProcessed(ctx context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.byKey {
		if ev.ID == eventID {
			ev.Processed = true
		}
	}
	return nil
}

func (f *fakeEventStore) FindOpenDeviation(ctx context.Context, shipmentID int64) (*domain.TelemetryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.TelemetryEvent
	for _, ev := range f.byKey {
		if ev.Type != domain.EventRouteDeviation || ev.Resolved {
			continue
		}
		if ev.ShipmentID == nil || *ev.ShipmentID != shipmentID {
			continue
		}
		if latest == nil || ev.EventTime.After(latest.EventTime) {
			latest = ev
		}
	}
	return latest, nil
}

func (f *fakeEventStore) ResolveDeviation(ctx context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.byKey {
		if ev.ID == eventID {
			ev.Resolved = true
		}
	}
	return nil
}

type fakeShipmentRepo struct {
	mu        sync.Mutex
	shipments map[int64]*domain.Shipment
}

func newFakeShipmentRepo(shipments ...*domain.Shipment) *fakeShipmentRepo {
	m := make(map[int64]*domain.Shipment, len(shipments))
	for _, s := range shipments {
		m[s.ID] = s
	}
	return &fakeShipmentRepo{shipments: m}
}

func (f *fakeShipmentRepo) FindActiveByUnit(ctx context.Context, unitID string) (*domain.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Shipment
	for _, s := range f.shipments {
		if s.UnitID != unitID || s.Status.IsTerminal() {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeShipmentRepo) GetByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shipments[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeShipmentRepo) Create(ctx context.Context, s *domain.Shipment) (*domain.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := *s
	created.ID = int64(len(f.shipments) + 1)
	f.shipments[created.ID] = &created
	return &created, nil
}

func (f *fakeShipmentRepo) UpdateState(ctx context.Context, id int64, status domain.Status, substatus domain.Substatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shipments[id]
	if !ok || s.Status.IsTerminal() {
		return false, nil
	}
	s.Status = status
	s.Substatus = substatus
	return true, nil
}

func (f *fakeShipmentRepo) GetTenant(ctx context.Context, tenantID int64) (*domain.Tenant, error) {
	return &domain.Tenant{ID: tenantID, WebhookURL: "https://downstream.example", WebhooksEnabled: true}, nil
}

type sentText struct {
	channel string
	text    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentText
}

func (f *fakeNotifier) SendText(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{channel: channelID, text: text})
	return nil
}

type sentWebhook struct {
	t          domain.WebhookType
	shipmentID int64
	extra      map[string]any
}

type fakeWebhookSender struct {
	mu   sync.Mutex
	sent []sentWebhook
}

func (f *fakeWebhookSender) Send(ctx context.Context, t domain.WebhookType, shipmentID int64, extra map[string]any) (ports.SendOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentWebhook{t: t, shipmentID: shipmentID, extra: extra})
	return ports.SendOutcome{Success: true, DeliveryID: int64(len(f.sent))}, nil
}

type fakeGrace struct{ allow bool }

func (f *fakeGrace) Allow(ctx context.Context, key string, now time.Time, grace time.Duration) (bool, error) {
	return f.allow, nil
}

type fakeClassifier struct{ result domain.IntentResult }

func (f *fakeClassifier) Classify(ctx context.Context, text string, status domain.Status, substatus domain.Substatus) (*domain.IntentResult, error) {
	r := f.result
	return &r, nil
}

func newTestProcessor(shipments *fakeShipmentRepo, geofences *fakeGeofenceRepo) (*Processor, *fakeEventStore, *fakeNotifier, *fakeWebhookSender) {
	events := newFakeEventStore()
	notifier := &fakeNotifier{}
	sender := &fakeWebhookSender{}
	p := &Processor{
		Events:      events,
		Shipments:   shipments,
		Geofences:   geofences,
		Notifier:    notifier,
		Classifier:  &fakeClassifier{},
		Grace:       &fakeGrace{allow: true},
		Webhooks:    sender,
		GraceWindow: 5 * time.Minute,
	}
	return p, events, notifier, sender
}

func testShipment() *domain.Shipment {
	return &domain.Shipment{
		ID:           1,
		ExternalCode: "SH-001",
		TenantID:     10,
		UnitID:       "truck-1",
		ChannelID:    "chan-1",
		Status:       domain.StatusAssigned,
		Substatus:    domain.SubstatusToStart,
		CreatedAt:    time.Now().Add(-time.Hour),
	}
}

func zoneEvent(notification string, typ domain.EventType, zone string, at time.Time) *domain.TelemetryEvent {
	return &domain.TelemetryEvent{
		NotificationID: notification,
		Type:           typ,
		UnitID:         "truck-1",
		GeofenceID:     &zone,
		EventTime:      at,
	}
}

func TestProcessEventLoadingZoneEntry(t *testing.T) {
	shipments := newFakeShipmentRepo(testShipment())
	geofences := &fakeGeofenceRepo{
		assignments: map[string]domain.GeofenceRole{"G1": domain.RoleLoading},
	}
	p, _, notifier, sender := newTestProcessor(shipments, geofences)

	res, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceEntry, "G1", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected applied result, got %+v", res)
	}

	s, _ := shipments.GetByID(context.Background(), 1)
	if s.Status != domain.StatusInLoadingZone || s.Substatus != domain.SubstatusWaitingLoading {
		t.Errorf("shipment state = (%s, %s)", s.Status, s.Substatus)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.sent))
	}
	if len(sender.sent) != 1 || sender.sent[0].t != domain.WebhookGeofenceTransition {
		t.Errorf("webhooks = %+v, want one geofence_transition", sender.sent)
	}
}

func TestProcessEventIdempotentDuplicate(t *testing.T) {
	shipments := newFakeShipmentRepo(testShipment())
	geofences := &fakeGeofenceRepo{
		assignments: map[string]domain.GeofenceRole{"G1": domain.RoleLoading},
	}
	p, _, notifier, sender := newTestProcessor(shipments, geofences)

	first, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceEntry, "G1", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceEntry, "G1", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.EventID != first.EventID {
		t.Errorf("duplicate must reference the original row: %d vs %d", second.EventID, first.EventID)
	}
	if !second.Duplicate {
		t.Error("second delivery must be reported as duplicate")
	}
	if len(notifier.sent) != 1 || len(sender.sent) != 1 {
		t.Errorf("duplicate must not repeat side effects: notify=%d webhooks=%d", len(notifier.sent), len(sender.sent))
	}
}

func TestProcessEventNoActiveShipment(t *testing.T) {
	shipments := newFakeShipmentRepo()
	p, events, notifier, sender := newTestProcessor(shipments, &fakeGeofenceRepo{})

	res, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceEntry, "G1", time.Now()))
	if err != nil {
		t.Fatalf("no active shipment must not be an error: %v", err)
	}
	if !res.NoShipment {
		t.Fatalf("expected no-shipment outcome, got %+v", res)
	}

	// The raw event is still durably stored for audit.
	if _, ok := events.byKey["n-1"]; !ok {
		t.Error("event must be stored even without an active shipment")
	}
	if len(notifier.sent) != 0 || len(sender.sent) != 0 {
		t.Error("no-op outcome must have no side effects")
	}
}

func TestProcessEventTerminalImmutability(t *testing.T) {
	done := testShipment()
	done.Status = domain.StatusCompleted
	done.Substatus = domain.SubstatusDeliveredConfirmed
	shipments := newFakeShipmentRepo(done)
	geofences := &fakeGeofenceRepo{
		assignments: map[string]domain.GeofenceRole{"G1": domain.RoleLoading},
	}
	p, _, notifier, sender := newTestProcessor(shipments, geofences)

	// FindActiveByUnit skips terminal shipments, so the event lands as
	// a no-op; force the shipment reference to exercise the engine's
	// own guard too.
	res, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceEntry, "G1", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NoShipment {
		t.Fatalf("terminal shipment must not be located as active, got %+v", res)
	}

	s, _ := shipments.GetByID(context.Background(), 1)
	if s.Status != domain.StatusCompleted || s.Substatus != domain.SubstatusDeliveredConfirmed {
		t.Error("terminal shipment state must never change")
	}
	if len(notifier.sent) != 0 || len(sender.sent) != 0 {
		t.Error("terminal shipment must produce no side effects")
	}
}

func TestProcessEventDeviationAndReturn(t *testing.T) {
	shipment := testShipment()
	shipment.Status = domain.StatusEnRouteDestination
	shipment.Substatus = domain.SubstatusHeadingToUnload
	shipments := newFakeShipmentRepo(shipment)
	geofences := &fakeGeofenceRepo{
		assignments: map[string]domain.GeofenceRole{"R1": domain.RoleRoute},
	}
	p, events, _, sender := newTestProcessor(shipments, geofences)

	exitTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceExit, "R1", exitTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].t != domain.WebhookRouteDeviation {
		t.Fatalf("expected one route_deviation webhook, got %+v", sender.sent)
	}
	derived, _ := events.FindOpenDeviation(context.Background(), shipment.ID)
	if derived == nil {
		t.Fatal("expected an open derived deviation event")
	}
	if derived.SourceEventID == nil {
		t.Error("derived deviation must reference its source event")
	}

	// Re-entry 90 seconds later closes the deviation.
	if _, err := p.ProcessEvent(context.Background(), zoneEvent("n-2", domain.EventGeofenceEntry, "R1", exitTime.Add(90*time.Second))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.sent) != 2 || sender.sent[1].t != domain.WebhookRouteReturn {
		t.Fatalf("expected a route_return webhook, got %+v", sender.sent)
	}
	deviation, ok := sender.sent[1].extra["deviation"].(map[string]any)
	if !ok {
		t.Fatal("route_return webhook must carry a deviation section")
	}
	if got := deviation["deviation_duration_seconds"].(int); got != 90 {
		t.Errorf("deviation_duration_seconds = %d, want 90", got)
	}

	if open, _ := events.FindOpenDeviation(context.Background(), shipment.ID); open != nil {
		t.Error("deviation must be resolved after the return")
	}

	// Neither step changes shipment state.
	s, _ := shipments.GetByID(context.Background(), shipment.ID)
	if s.Status != domain.StatusEnRouteDestination {
		t.Errorf("status = %s, want en_route_destination", s.Status)
	}

	// A second route entry with nothing open is silent.
	if _, err := p.ProcessEvent(context.Background(), zoneEvent("n-3", domain.EventGeofenceEntry, "R1", exitTime.Add(2*time.Minute))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Errorf("first-time route entry must emit nothing, got %d webhooks", len(sender.sent))
	}
}

func TestProcessEventDeviationNotificationGraced(t *testing.T) {
	shipment := testShipment()
	shipment.Status = domain.StatusEnRouteDestination
	shipments := newFakeShipmentRepo(shipment)
	geofences := &fakeGeofenceRepo{
		assignments: map[string]domain.GeofenceRole{"R1": domain.RoleRoute},
	}
	p, _, notifier, sender := newTestProcessor(shipments, geofences)
	p.Grace = &fakeGrace{allow: false}

	if _, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceExit, "R1", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.sent) != 0 {
		t.Error("suppressed notification must not reach the driver")
	}
	// Suppression throttles chat only; the webhook still goes out.
	if len(sender.sent) != 1 || sender.sent[0].t != domain.WebhookRouteDeviation {
		t.Errorf("webhook must be emitted regardless of grace, got %+v", sender.sent)
	}
}

func TestProcessEventUnknownRoleIsSilent(t *testing.T) {
	shipments := newFakeShipmentRepo(testShipment())
	geofences := &fakeGeofenceRepo{assignments: map[string]domain.GeofenceRole{}, names: map[string]string{}}
	p, _, notifier, sender := newTestProcessor(shipments, geofences)

	res, err := p.ProcessEvent(context.Background(), zoneEvent("n-1", domain.EventGeofenceEntry, "G9", time.Now()))
	if err != nil {
		t.Fatalf("unknown zone must not be an error: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected applied no-op, got %+v", res)
	}
	if len(notifier.sent) != 0 || len(sender.sent) != 0 {
		t.Error("unknown role must be silent")
	}
}

func TestProcessEventSpeedViolation(t *testing.T) {
	shipments := newFakeShipmentRepo(testShipment())
	p, _, notifier, sender := newTestProcessor(shipments, &fakeGeofenceRepo{})

	ev := &domain.TelemetryEvent{
		NotificationID: "n-1",
		Type:           domain.EventSpeedViolation,
		UnitID:         "truck-1",
		Speed:          120,
		MaxSpeed:       80,
		EventTime:      time.Now(),
	}

	if _, err := p.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Errorf("speed violation must notify, got %d", len(notifier.sent))
	}
	if len(sender.sent) != 1 || sender.sent[0].t != domain.WebhookSpeedViolation {
		t.Fatalf("expected speed_violation webhook, got %+v", sender.sent)
	}
	violation := sender.sent[0].extra["violation"].(map[string]any)
	if violation["severity"] != "high" {
		t.Errorf("severity = %v, want high", violation["severity"])
	}
}

func TestProcessChatMessageCompletesShipment(t *testing.T) {
	shipment := testShipment()
	shipment.Status = domain.StatusInUnloadingZone
	shipment.Substatus = domain.SubstatusUnloading
	shipments := newFakeShipmentRepo(shipment)
	p, _, notifier, sender := newTestProcessor(shipments, &fakeGeofenceRepo{})
	p.Classifier = &fakeClassifier{result: domain.IntentResult{
		Intent:       domain.IntentUnloadingComplete,
		Confidence:   0.94,
		ResponseText: "Entrega confirmada. ¡Buen trabajo!",
	}}

	res, err := p.ProcessChatMessage(context.Background(), "truck-1", "ya termine de descargar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected applied result, got %+v", res)
	}

	s, _ := shipments.GetByID(context.Background(), shipment.ID)
	if s.Status != domain.StatusCompleted || s.Substatus != domain.SubstatusDeliveredConfirmed {
		t.Errorf("shipment state = (%s, %s), want terminal", s.Status, s.Substatus)
	}

	if len(notifier.sent) != 1 || notifier.sent[0].text != "Entrega confirmada. ¡Buen trabajo!" {
		t.Errorf("driver reply = %+v", notifier.sent)
	}

	// status_update for the transition plus communication_response.
	if len(sender.sent) != 2 {
		t.Fatalf("webhooks = %d, want 2", len(sender.sent))
	}
	if sender.sent[0].t != domain.WebhookStatusUpdate || sender.sent[1].t != domain.WebhookCommunication {
		t.Errorf("webhook order = %s, %s", sender.sent[0].t, sender.sent[1].t)
	}

	// Once terminal, further chat intents are rejected.
	res, err = p.ProcessChatMessage(context.Background(), "truck-1", "empiezo a cargar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NoShipment {
		t.Errorf("completed shipment must no longer be active, got %+v", res)
	}
}
