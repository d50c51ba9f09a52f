package services

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"shipment-tracking-service/internal/domain"
)

// Field names accepted from the tracking provider, shared by both wire
// encodings.
const (
	fieldNotificationID = "notification_id"
	fieldType           = "type"
	fieldUnit           = "unit"
	fieldZone           = "zone"
	fieldShipment       = "shipment_id"
	fieldLat            = "lat"
	fieldLon            = "lon"
	fieldSpeed          = "speed"
	fieldMaxSpeed       = "max_speed"
	fieldDistance       = "distance"
	fieldEventTime      = "event_time"
)

// Provider template placeholders arrive wrapped in percent signs on
// both sides (e.g. "%ZONE%") when the provider failed to resolve them.
const placeholderSentinel = "%"

// ParseTelemetry decodes a raw provider notification into a flat field
// map. Two encodings are supported: JSON and newline-separated
// key=value text. Unknown encodings are logged and yield an empty map
// rather than an error, so the ingestion boundary never triggers
// provider-side retries.
func ParseTelemetry(raw []byte, contentType string) map[string]string {
	ct := contentType
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))

	var fields map[string]string
	switch ct {
	case "application/json", "text/json":
		fields = parseJSONFields(raw)
	case "text/plain", "application/x-www-form-urlencoded", "":
		fields = parseFlatFields(raw)
	default:
		log.Printf("intake: unknown content type %q, treating as empty", contentType)
		return map[string]string{}
	}

	// Null out unresolved template placeholders instead of letting
	// them propagate as data.
	for k, v := range fields {
		if isPlaceholder(v) {
			log.Printf("intake: field %q holds unresolved placeholder %q, nulled", k, v)
			delete(fields, k)
		}
	}

	return fields
}

func parseJSONFields(raw []byte) map[string]string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		log.Printf("intake: malformed json payload: %v", err)
		return map[string]string{}
	}

	fields := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			fields[k] = t
		case float64:
			fields[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(t)
		case nil:
			// skip
		default:
			b, err := json.Marshal(t)
			if err != nil {
				continue
			}
			fields[k] = string(b)
		}
	}
	return fields
}

// parseFlatFields handles the provider's flat key=value encoding, one
// pair per line (a "&" separator is accepted as well).
func parseFlatFields(raw []byte) map[string]string {
	text := strings.ReplaceAll(string(raw), "&", "\n")
	fields := make(map[string]string)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		fields[key] = value
	}

	return fields
}

func isPlaceholder(v string) bool {
	return len(v) >= 2 &&
		strings.HasPrefix(v, placeholderSentinel) &&
		strings.HasSuffix(v, placeholderSentinel)
}

// parseNumeric sanitizes flat-encoding numbers: decimal commas become
// dots and trailing non-numeric suffixes (units like "km/h") are
// stripped.
func parseNumeric(v string) (float64, bool) {
	v = strings.TrimSpace(strings.ReplaceAll(v, ",", "."))

	end := 0
	for i, r := range v {
		if (r >= '0' && r <= '9') || r == '.' || ((r == '-' || r == '+') && i == 0) {
			end = i + 1
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}

	f, err := strconv.ParseFloat(v[:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var eventTypeAliases = map[string]domain.EventType{
	"geofence_entry":  domain.EventGeofenceEntry,
	"zone_entry":      domain.EventGeofenceEntry,
	"geofence_exit":   domain.EventGeofenceExit,
	"zone_exit":       domain.EventGeofenceExit,
	"speed_violation": domain.EventSpeedViolation,
	"speeding":        domain.EventSpeedViolation,
	"panic_button":    domain.EventPanicButton,
	"sos":             domain.EventPanicButton,
	"connection_lost": domain.EventConnectionLost,
	"offline":         domain.EventConnectionLost,
}

// BuildEvent coerces a parsed field map into a TelemetryEvent. When
// the provider omitted its notification id, a deterministic-ish key is
// synthesized from type+time+unit plus a random suffix; duplicates
// cannot be detected for that degraded case, which is logged as a
// warning.
func BuildEvent(fields map[string]string, raw []byte, now time.Time) (*domain.TelemetryEvent, error) {
	typ, ok := eventTypeAliases[strings.ToLower(fields[fieldType])]
	if !ok {
		return nil, fmt.Errorf("build event: unknown event type %q", fields[fieldType])
	}

	unit := fields[fieldUnit]
	if unit == "" {
		return nil, fmt.Errorf("build event: missing unit")
	}

	eventTime := now
	if v := fields[fieldEventTime]; v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			eventTime = ts
		} else if n, ok := parseNumeric(v); ok {
			eventTime = time.Unix(int64(n), 0).UTC()
		}
	}

	ev := &domain.TelemetryEvent{
		NotificationID: fields[fieldNotificationID],
		Type:           typ,
		UnitID:         unit,
		EventTime:      eventTime,
		RawPayload:     raw,
	}

	if ev.NotificationID == "" {
		ev.NotificationID = fmt.Sprintf("synth:%s:%d:%s:%04x",
			typ, eventTime.Unix(), unit, rand.Uint32()&0xffff)
		log.Printf("intake: notification id missing, synthesized key=%s unit=%s (duplicates undetectable)",
			ev.NotificationID, unit)
	}

	if v := fields[fieldZone]; v != "" {
		zone := v
		ev.GeofenceID = &zone
	}
	if n, ok := parseNumeric(fields[fieldLat]); ok {
		ev.Latitude = n
	}
	if n, ok := parseNumeric(fields[fieldLon]); ok {
		ev.Longitude = n
	}
	if n, ok := parseNumeric(fields[fieldSpeed]); ok {
		ev.Speed = n
	}
	if n, ok := parseNumeric(fields[fieldMaxSpeed]); ok {
		ev.MaxSpeed = n
	}
	if n, ok := parseNumeric(fields[fieldDistance]); ok {
		ev.DistanceFromRoute = n
	}

	return ev, nil
}
