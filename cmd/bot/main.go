package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candypic/internal/api"
	"candypic/internal/bot"
	"candypic/internal/config"
	"candypic/internal/database"
	"candypic/internal/domain"
	"candypic/internal/events"
	"candypic/internal/google"
	"candypic/internal/logging"
	"candypic/internal/metrics"
	"candypic/internal/push"
	"candypic/internal/repository"
	"candypic/internal/service"
	"candypic/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "main")

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	db, err := database.NewDB(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, stateService := initStateService(ctx, cfg, db, baseLogger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	eventBus := events.NewEventBus()
	subscribeAuditLog(eventBus, logging.Component(baseLogger, "events"))

	sender, err := initPushSender(ctx, cfg, baseLogger)
	if err != nil {
		return err
	}
	dispatcher := push.NewDispatcher(db, sender, cfg.Push, logging.Component(baseLogger, "push"))

	pushWorker := worker.NewPushWorker(dispatcher, cfg.Push, worker.RetryPolicy{}, logging.Component(baseLogger, "push-worker"))
	pushWorker.SubscribeAssignments(eventBus)
	pushWorker.Start()

	bookingService := service.NewBookingService(db, eventBus, logging.Component(baseLogger, "bookings"))

	client, err := bot.NewClient(cfg.Telegram)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Telegram client")
		pushWorker.Stop()
		return err
	}
	tgService := service.NewTelegramService(client)

	telegramBot := bot.NewBot(
		tgService, cfg, stateService, bookingService,
		dispatcher, pushWorker, logging.Component(baseLogger, "bot"),
	)

	httpServer := api.NewHTTPServer(cfg, telegramBot, db, logging.Component(baseLogger, "http"))
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logging.Component(baseLogger, "backup"))
		go backupService.Start(ctx)
	}

	logger.Info().
		Str("mode", cfg.Telegram.Mode).
		Str("driver", cfg.Database.Driver).
		Bool("push", cfg.Push.Enabled).
		Msg("Service started")

	if cfg.Telegram.Mode == config.ModePolling {
		telegramBot.Start(ctx)
		telegramBot.Stop()
	} else {
		<-ctx.Done()
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown")
	}
	pushWorker.Stop()

	logger.Info().Msg("Shutdown complete")
	return nil
}

// initStateService keeps conversation state in Redis when configured, with
// the database as fallback. Without Redis the database is the only store.
func initStateService(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	logger *zerolog.Logger,
) (*redis.Client, *service.StateService) {
	stateLogger := logging.Component(logger, "state")
	dbRepo := database.NewConversationRepository(db, cfg.Conversation.TTL, stateLogger)
	if cfg.Redis.Address == "" {
		return nil, service.NewStateService(dbRepo, stateLogger)
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		stateLogger.Warn().Err(err).Msg("Redis unavailable, starting on the database fallback")
	}

	primary := repository.NewRedisStateRepository(redisClient, cfg.Conversation.TTL)
	stateRepo := repository.NewFailoverStateRepository(primary, dbRepo, stateLogger)
	return redisClient, service.NewStateService(stateRepo, stateLogger)
}

func initPushSender(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.PushSender, error) {
	pushLogger := logging.Component(logger, "push")
	if !cfg.Push.Enabled {
		pushLogger.Warn().Msg("Push is disabled, deliveries are only logged")
		return push.LogSender{Logger: pushLogger}, nil
	}

	sender, err := google.NewFCMSenderFromFile(ctx, cfg.Push.CredentialsFile, cfg.Push.ProjectID)
	if err != nil {
		pushLogger.Error().Err(err).Msg("Failed to initialize FCM")
		return nil, err
	}
	return sender, nil
}

func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	logDecision := func(ev *events.Event) error {
		var payload events.DecisionPayload
		if err := ev.Decode(&payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Info().
			Str("event", ev.Type).
			Int64("booking_id", payload.BookingID).
			Str("client", payload.ClientName).
			Str("status", payload.Status).
			Msg("Booking event")
		return nil
	}

	bus.Subscribe(events.EventBookingCreated, logDecision)
	bus.Subscribe(events.EventBookingApproved, logDecision)
	bus.Subscribe(events.EventBookingRejected, logDecision)
	bus.Subscribe(events.EventAssigneeAdded, func(ev *events.Event) error {
		var payload events.AssignmentPayload
		if err := ev.Decode(&payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Info().
			Int64("booking_id", payload.BookingID).
			Str("assignee", payload.Name).
			Bool("has_phone", payload.Phone != "").
			Msg("Assignee added")
		return nil
	})
}
