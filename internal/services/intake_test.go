package services

import (
	"strings"
	"testing"
	"time"

	"shipment-tracking-service/internal/domain"
)

func TestParseTelemetryFlatEncoding(t *testing.T) {
	raw := []byte("notification_id=n-123\ntype=speeding\nunit=truck-7\nspeed=95,5 km/h\nmax_speed=80 km/h\nzone=%ZONE%\n")

	fields := ParseTelemetry(raw, "text/plain")

	if fields["notification_id"] != "n-123" {
		t.Errorf("notification_id = %q", fields["notification_id"])
	}
	if fields["speed"] != "95,5 km/h" {
		t.Errorf("speed = %q", fields["speed"])
	}
	if _, ok := fields["zone"]; ok {
		t.Error("unresolved placeholder must be nulled, not propagated")
	}
}

func TestParseTelemetryJSONEncoding(t *testing.T) {
	raw := []byte(`{"notification_id":"n-9","type":"zone_entry","unit":"truck-2","zone":"G1","lat":19.43,"lon":-99.13}`)

	fields := ParseTelemetry(raw, "application/json; charset=utf-8")

	if fields["type"] != "zone_entry" {
		t.Errorf("type = %q", fields["type"])
	}
	if fields["lat"] != "19.43" {
		t.Errorf("lat = %q", fields["lat"])
	}
}

func TestParseTelemetryUnknownEncoding(t *testing.T) {
	fields := ParseTelemetry([]byte("<xml/>"), "application/xml")
	if len(fields) != 0 {
		t.Errorf("unknown encoding must yield an empty map, got %v", fields)
	}
}

func TestParseTelemetryMalformedJSON(t *testing.T) {
	fields := ParseTelemetry([]byte("{not json"), "application/json")
	if len(fields) != 0 {
		t.Errorf("malformed json must yield an empty map, got %v", fields)
	}
}

func TestParseNumericSanitization(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"80", 80, true},
		{"95,5 km/h", 95.5, true},
		{"120 km/h", 120, true},
		{"-12.5m", -12.5, true},
		{"", 0, false},
		{"km/h", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseNumeric(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumeric(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBuildEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := map[string]string{
		"notification_id": "n-55",
		"type":            "zone_exit",
		"unit":            "truck-4",
		"zone":            "G7",
		"speed":           "62,0 km/h",
		"event_time":      "2026-03-01T11:58:30Z",
	}

	ev, err := BuildEvent(fields, []byte("raw"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.Type != domain.EventGeofenceExit {
		t.Errorf("type = %s", ev.Type)
	}
	if ev.GeofenceID == nil || *ev.GeofenceID != "G7" {
		t.Errorf("geofence = %v", ev.GeofenceID)
	}
	if ev.Speed != 62.0 {
		t.Errorf("speed = %v", ev.Speed)
	}
	if !ev.EventTime.Equal(time.Date(2026, 3, 1, 11, 58, 30, 0, time.UTC)) {
		t.Errorf("event time = %v", ev.EventTime)
	}
}

func TestBuildEventSynthesizesKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := map[string]string{
		"type": "sos",
		"unit": "truck-1",
	}

	ev, err := BuildEvent(fields, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(ev.NotificationID, "synth:panic_button:") {
		t.Errorf("synthesized key = %q", ev.NotificationID)
	}
	if !strings.Contains(ev.NotificationID, "truck-1") {
		t.Errorf("synthesized key must embed the unit, got %q", ev.NotificationID)
	}
}

func TestBuildEventRejectsUnknownType(t *testing.T) {
	if _, err := BuildEvent(map[string]string{"type": "mystery", "unit": "u"}, nil, time.Now()); err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if _, err := BuildEvent(map[string]string{"type": "sos"}, nil, time.Now()); err == nil {
		t.Fatal("expected error for missing unit")
	}
}
