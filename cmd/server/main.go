package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shipment-tracking-service/internal/adapters/delivery"
	"shipment-tracking-service/internal/adapters/grace"
	"shipment-tracking-service/internal/adapters/notify"
	"shipment-tracking-service/internal/adapters/repositories"
	"shipment-tracking-service/internal/api"
	"shipment-tracking-service/internal/config"
	"shipment-tracking-service/internal/platform/db"
	"shipment-tracking-service/internal/platform/metrics"
	"shipment-tracking-service/internal/ports"
	"shipment-tracking-service/internal/services"
)

// main is the application composition root. It wires concrete adapters
// (Postgres, chat service, intent classifier, grace tracker) behind
// ports and starts the HTTP server plus the pending-delivery worker.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if strings.TrimSpace(webhookSecret) == "" {
		log.Fatal("WEBHOOK_SECRET is required")
	}

	chatURL := config.Get("CHAT_SERVICE_URL", "http://localhost:8090")
	intentURL := config.Get("INTENT_SERVICE_URL", "http://localhost:8091")
	port := config.Get("PORT", "8080")

	conn, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := repositories.InitSchema(conn); err != nil {
		log.Fatal(err)
	}

	metrics.Register()

	shipments := repositories.NewPostgresShipmentRepository(conn)
	events := repositories.NewPostgresEventStore(conn)
	geofences := repositories.NewPostgresGeofenceRepository(conn)
	deliveryLog := repositories.NewPostgresDeliveryLog(conn)

	notifier, err := notify.NewChatNotifier(chatURL, os.Getenv("CHAT_SERVICE_TOKEN"))
	if err != nil {
		log.Fatal(err)
	}
	classifier, err := notify.NewIntentClient(intentURL, os.Getenv("INTENT_SERVICE_TOKEN"))
	if err != nil {
		log.Fatal(err)
	}

	tracker := buildGraceTracker()

	dispatcher := &delivery.Dispatcher{
		Shipments:   shipments,
		Log:         deliveryLog,
		DeadLetters: deliveryLog,
		Sender:      delivery.NewSender(webhookSecret, config.GetDuration("WEBHOOK_ATTEMPT_TIMEOUT", 10*time.Second)),
		Breakers: delivery.NewBreakerGroup(
			config.GetInt("BREAKER_FAILURE_THRESHOLD", 5),
			config.GetDuration("BREAKER_COOLDOWN", 60*time.Second),
		),
		MaxRetries:     config.GetInt("WEBHOOK_MAX_RETRIES", 4),
		BaseBackoff:    config.GetDuration("WEBHOOK_BASE_BACKOFF", 500*time.Millisecond),
		MaxBackoff:     config.GetDuration("WEBHOOK_MAX_BACKOFF", 8*time.Second),
		AttemptTimeout: config.GetDuration("WEBHOOK_ATTEMPT_TIMEOUT", 10*time.Second),
	}

	processor := &services.Processor{
		Events:      events,
		Shipments:   shipments,
		Geofences:   geofences,
		Notifier:    notifier,
		Classifier:  classifier,
		Grace:       tracker,
		Webhooks:    dispatcher,
		GraceWindow: config.GetDuration("DEVIATION_GRACE_WINDOW", 5*time.Minute),
	}

	router := api.NewRouter(processor, shipments, deliveryLog, deliveryLog)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Picks up requeued dead letters and rows orphaned before their
	// first attempt.
	go resendLoop(ctx, dispatcher)

	go func() {
		log.Printf("Server listening addr=:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func buildGraceTracker() ports.GraceTracker {
	if config.Get("GRACE_TRACKER", "memory") != "redis" {
		return grace.NewMemoryTracker(time.Hour, 5*time.Minute)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Get("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       config.GetInt("REDIS_DB", 0),
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	return grace.NewRedisTracker(client)
}

func resendLoop(ctx context.Context, dispatcher *delivery.Dispatcher) {
	interval := config.GetDuration("RESEND_INTERVAL", time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dispatcher.ResendPending(ctx, interval, 50); err != nil {
				log.Printf("resend worker: %v", err)
			}
		}
	}
}
