package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shipment-tracking-service/internal/api/handlers"
	"shipment-tracking-service/internal/ports"
	"shipment-tracking-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an
// http.Handler. This is the API composition root (handlers stay
// unaware of concrete adapters).
func NewRouter(
	processor *services.Processor,
	shipments ports.ShipmentRepository,
	deliveries ports.DeliveryLog,
	deadLetters ports.DeadLetterStore,
) http.Handler {
	mux := http.NewServeMux()

	telemetryHandler := &handlers.TelemetryHandler{Processor: processor}
	chatHandler := &handlers.ChatHandler{Processor: processor}
	shipmentHandler := &handlers.ShipmentHandler{Repo: shipments}
	adminHandler := &handlers.AdminHandler{Deliveries: deliveries, DeadLetters: deadLetters}

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/telemetry", telemetryHandler.Ingest)
	mux.HandleFunc("/chat/messages", chatHandler.Message)
	mux.HandleFunc("/shipments", shipmentHandler.Handle)
	mux.HandleFunc("/admin/deliveries", adminHandler.ListDeliveries)
	mux.HandleFunc("/admin/deadletters", adminHandler.ListDeadLetters)
	mux.HandleFunc("/admin/deadletters/requeue", adminHandler.Requeue)

	return loggingMiddleware(mux)
}
