package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/ride-reminders/internal/config"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/gateway"
	"github.com/kursadbilgin/ride-reminders/internal/handler"
	"github.com/kursadbilgin/ride-reminders/internal/infra/postgresql"
	"github.com/kursadbilgin/ride-reminders/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/ride-reminders/internal/infra/redis"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/kursadbilgin/ride-reminders/internal/queue"
	"github.com/kursadbilgin/ride-reminders/internal/repository"
	"github.com/kursadbilgin/ride-reminders/internal/service"
	"github.com/kursadbilgin/ride-reminders/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("ride-reminders stopped with error", zap.Error(err))
	}
	logger.Info("ride-reminders stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	startupCtx, cancelStartup := context.WithTimeout(ctx, startupTimeout)
	defer cancelStartup()

	db, err := postgresql.NewPostgres(startupCtx, cfg.DatabaseDSN, postgresql.DefaultPoolOptions)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(startupCtx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	reminderRepo := repository.NewGormReminderRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	bookingReader := repository.NewGormBookingReader(db)

	router, err := buildGateways(cfg)
	if err != nil {
		return err
	}

	limiter, err := infraredis.NewSendLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	lease, err := infraredis.NewCycleLease(rdb)
	if err != nil {
		return fmt.Errorf("cycle lease initialization failed: %w", err)
	}

	scheduler, err := service.NewReminderScheduler(reminderRepo, bookingReader, cfg.Channel(), cfg.ReminderAttemptLimit, logger)
	if err != nil {
		return fmt.Errorf("reminder scheduler initialization failed: %w", err)
	}
	scheduler.SetMetrics(metrics)

	dispatcher, err := service.NewReminderDispatcher(reminderRepo, bookingReader, router, service.DispatcherOptions{
		SendTimeout: cfg.GatewayTimeout,
		BatchLimit:  cfg.ReminderBatchLimit,
		Concurrency: cfg.ReminderConcurrency,
	}, logger)
	if err != nil {
		return fmt.Errorf("reminder dispatcher initialization failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)
	dispatcher.SetAttemptLog(attemptRepo)
	dispatcher.SetLimiter(limiter)

	queries, err := service.NewReminderQueryService(reminderRepo)
	if err != nil {
		return fmt.Errorf("reminder query service initialization failed: %w", err)
	}
	queries.SetMetrics(metrics)
	queries.SetAttemptLog(attemptRepo)

	trigger, err := service.NewReminderTrigger(dispatcher, service.TriggerOptions{
		Enabled:       cfg.ReminderSchedulingEnabled,
		DueInterval:   cfg.ReminderDueInterval,
		RetryInterval: cfg.ReminderRetryInterval,
		StatsSpec:     cfg.ReminderStatsCron,
		CleanupSpec:   cfg.ReminderCleanupCron,
		Retention:     cfg.ReminderRetention,
	}, logger)
	if err != nil {
		return fmt.Errorf("reminder trigger initialization failed: %w", err)
	}
	trigger.SetLease(lease)
	trigger.SetMetrics(metrics)
	trigger.SetHousekeeping(queries, reminderRepo)

	var broker *queue.RabbitMQ
	var brokerHealth handler.BrokerHealth
	if cfg.RabbitMQURL != "" {
		broker, err = queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		defer broker.Close()
		brokerHealth = broker

		publisher := queue.NewRabbitMQPublisher(broker)
		defer publisher.Close()
		dispatcher.SetPublisher(publisher)
	} else {
		logger.Info("RABBITMQ_URL not set, booking events are not consumed")
	}

	app := fiber.New(fiber.Config{
		AppName:               "ride-reminders",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, brokerHealth)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterReminderRoutes(app, handler.ReminderDependencies{
		Scheduler:      scheduler,
		Queries:        queries,
		Trigger:        trigger,
		Gateway:        router,
		DefaultChannel: cfg.Channel(),
	}); err != nil {
		return fmt.Errorf("route registration failed: %w", err)
	}

	var consumer queue.Consumer
	var events *service.BookingEventHandler
	if broker != nil {
		events, err = service.NewBookingEventHandler(scheduler, bookingReader, logger)
		if err != nil {
			return fmt.Errorf("booking event handler initialization failed: %w", err)
		}
		consumer = queue.NewRabbitMQConsumer(broker, cfg.ReminderConcurrency, logger)
		defer consumer.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return trigger.Start(gctx)
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Consume(gctx, queue.BookingEventsQueue, events.Handle)
		})
	}

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("ride-reminders api started",
			zap.String("addr", addr),
			zap.String("channel", cfg.Channel().String()),
			zap.Bool("schedulingEnabled", cfg.ReminderSchedulingEnabled),
		)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildGateways registers a gateway for every channel that has settings.
// The configured reminder channel is guaranteed by config validation.
func buildGateways(cfg *config.Config) (*gateway.Router, error) {
	router := gateway.NewRouter()

	if cfg.SMTPHost != "" {
		smtpGateway, err := gateway.NewSMTPGateway(gateway.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.GatewayTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp gateway initialization failed: %w", err)
		}
		router.Register(domain.ChannelEmail, smtpGateway)
	}

	if cfg.TwilioAccountSID != "" {
		twilioGateway, err := gateway.NewTwilioGateway(gateway.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		})
		if err != nil {
			return nil, fmt.Errorf("twilio gateway initialization failed: %w", err)
		}
		router.Register(domain.ChannelSMS, twilioGateway)
	}

	if cfg.WebhookURL != "" {
		webhookGateway, err := gateway.NewWebhookGateway(cfg.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("webhook gateway initialization failed: %w", err)
		}
		router.Register(domain.ChannelWebhook, webhookGateway)
	}

	if !router.Supports(cfg.Channel()) {
		return nil, fmt.Errorf("no gateway configured for reminder channel %s", cfg.Channel())
	}
	return router, nil
}
