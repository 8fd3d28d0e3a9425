package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repairhub/internal/api"
	"repairhub/internal/config"
	"repairhub/internal/database"
	"repairhub/internal/domain"
	"repairhub/internal/events"
	"repairhub/internal/logging"
	"repairhub/internal/metrics"
	"repairhub/internal/models"
	"repairhub/internal/notify"
	"repairhub/internal/policy"
	"repairhub/internal/repository"
	"repairhub/internal/service"
	"repairhub/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	catalog, err := loadCatalog(&logger)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedCatalog(ctx, db, catalog, &logger); err != nil {
		return err
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	emailSender, telegramSender := initSenders(cfg, &logger)

	retryPolicy := worker.RetryPolicy{
		MaxRetries:    cfg.Notifications.Retry.MaxRetries,
		InitialDelay:  time.Duration(cfg.Notifications.Retry.InitialDelayMS) * time.Millisecond,
		MaxDelay:      time.Duration(cfg.Notifications.Retry.MaxDelayMS) * time.Millisecond,
		BackoffFactor: cfg.Notifications.Retry.BackoffFactor,
	}
	outboxWorker := worker.NewOutboxWorker(db, emailSender, telegramSender, redisClient, retryPolicy, &logger)
	go outboxWorker.Start(ctx)

	eventBus := events.NewEventBus()
	subscribeProviderAlerts(ctx, eventBus, db, outboxWorker, &logger)
	subscribeMetrics(eventBus)

	window := time.Duration(cfg.Policy.CancellationWindowHours) * time.Hour
	bookingService := service.NewBookingService(db, eventBus, outboxWorker, policy.NewCancellationPolicy(window), &logger)
	catalogService := service.NewCatalogService(db, eventBus, outboxWorker, &logger)

	tracker := initTrackingLimiter(redisClient, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, catalogService, tracker, &logger)
	return startServer(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// seedCatalogFile mirrors configs/catalog.yaml.
type seedCatalogFile struct {
	Providers []models.Provider `yaml:"providers"`
	Services  []models.Service  `yaml:"services"`
}

func loadCatalog(logger *zerolog.Logger) (*seedCatalogFile, error) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return nil, err
	}

	var catalog seedCatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return nil, err
	}

	return &catalog, nil
}

// seedCatalog upserts providers and inserts services missing from the store.
// Service rows already present are left alone so provider edits survive
// restarts.
func seedCatalog(ctx context.Context, db *database.DB, catalog *seedCatalogFile, logger *zerolog.Logger) error {
	for i := range catalog.Providers {
		if err := db.UpsertProvider(ctx, &catalog.Providers[i]); err != nil {
			return fmt.Errorf("seed provider %d: %w", catalog.Providers[i].ID, err)
		}
	}

	for i := range catalog.Services {
		svc := &catalog.Services[i]
		existing, err := db.ListServicesByProvider(ctx, svc.ProviderID)
		if err != nil {
			return fmt.Errorf("list services for provider %d: %w", svc.ProviderID, err)
		}
		found := false
		for _, e := range existing {
			if e.Name == svc.Name {
				found = true
				break
			}
		}
		if found {
			continue
		}
		if err := db.CreateService(ctx, svc); err != nil {
			return fmt.Errorf("seed service %q: %w", svc.Name, err)
		}
	}

	logger.Info().
		Int("providers", len(catalog.Providers)).
		Int("services", len(catalog.Services)).
		Msg("catalog seeded")
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initSenders(cfg *config.Config, logger *zerolog.Logger) (domain.EmailSender, domain.TelegramSender) {
	var emailSender domain.EmailSender
	if cfg.Notifications.SMTP.Enabled {
		emailSender = notify.NewSMTPSender(cfg.Notifications.SMTP, logger)
		logger.Info().Str("host", cfg.Notifications.SMTP.Host).Msg("smtp sender configured")
	}

	var telegramSender domain.TelegramSender
	if cfg.Notifications.Telegram.Enabled {
		notifier, err := notify.NewTelegramNotifier(cfg.Notifications.Telegram, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram alerts")
		} else {
			telegramSender = notifier
		}
	}

	return emailSender, telegramSender
}

func initTrackingLimiter(redisClient *redis.Client, logger *zerolog.Logger) domain.TrackingLimiter {
	memory := repository.NewMemoryTrackingLimiter()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverTrackingLimiter(
		repository.NewRedisTrackingLimiter(redisClient), memory, logger)
}

// subscribeProviderAlerts pushes a telegram note to the owning provider when a
// client creates or cancels a booking.
func subscribeProviderAlerts(
	ctx context.Context,
	bus *events.EventBus,
	db *database.DB,
	outboxWorker *worker.OutboxWorker,
	logger *zerolog.Logger,
) {
	decode := func(ev *events.Event) (events.BookingEventPayload, error) {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return payload, err
		}
		return payload, nil
	}

	alert := func(text string) events.EventHandler {
		return func(ev *events.Event) error {
			payload, err := decode(ev)
			if err != nil {
				logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
				return nil
			}

			provider, err := db.GetProvider(ctx, payload.ProviderID)
			if err != nil {
				logger.Error().Err(err).Int64("provider_id", payload.ProviderID).Msg("event bus: load provider")
				return nil
			}
			if provider.TelegramChatID == 0 {
				return nil
			}

			msg := fmt.Sprintf("%s: %s (%s, %s)", text, payload.BookingID, payload.ServiceName, payload.ClientName)
			if ev.Type == events.EventBookingCancelled && payload.Fee != "" {
				msg += fmt.Sprintf(", fee: %s", payload.Fee)
			}
			if err := outboxWorker.EnqueueTelegram(ctx, provider.TelegramChatID, payload.BookingID, msg); err != nil {
				logger.Error().Err(err).Str("booking_id", payload.BookingID).Msg("event bus: enqueue telegram")
			}
			return nil
		}
	}

	bus.Subscribe(events.EventBookingCreated, alert("New booking request"))
	bus.Subscribe(events.EventBookingCancelled, alert("Booking cancelled"))
}

func subscribeMetrics(bus *events.EventBus) {
	count := func(status string) events.EventHandler {
		return func(ev *events.Event) error {
			metrics.IncTransition(status)
			return nil
		}
	}

	bus.Subscribe(events.EventBookingCreated, count(models.StatusPending))
	bus.Subscribe(events.EventBookingConfirmed, count(models.StatusConfirmed))
	bus.Subscribe(events.EventBookingRejected, count(models.StatusRejected))
	bus.Subscribe(events.EventBookingCancelled, count(models.StatusCancelled))
	bus.Subscribe(events.EventBookingCompleted, count(models.StatusCompleted))
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}
