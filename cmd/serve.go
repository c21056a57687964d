package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"vipbot/internal/caching"
	"vipbot/internal/config"
	"vipbot/internal/handlers"
	"vipbot/internal/jobs"
	"vipbot/internal/jobs/background"
	"vipbot/internal/logging"
	"vipbot/internal/metrics"
	"vipbot/internal/middleware"
	"vipbot/internal/repositories"
	"vipbot/internal/services"
	"vipbot/internal/telegram"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func runServer() error {
	logging.Init(logging.Config{Format: "auto", Level: "info", Component: "vipbot"})

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Component: "vipbot"})
	metrics.InitMetrics()
	log.Info().Str("version", Version).Str("mode", cfg.Bot.Mode).Msg("Starting vipbot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, err := telegram.NewGateway(cfg.Bot.Token)
	if err != nil {
		return err
	}
	notifier := services.NewBreakerNotifier(gateway)

	ledgerRepo := repositories.NewFileLedgerRepo(cfg.Ledger.Path)
	var subOpts []services.SubscriptionOption
	if cfg.Notify.Grant {
		subOpts = append(subOpts, services.WithSubscriberNotifications(notifier))
	}
	subscriptions := services.NewSubscriptionService(ledgerRepo, subOpts...)

	intakeStore, redisClient, err := newIntakeStore(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var intakeOpts []services.IntakeOption
	if cfg.Archive.Enabled {
		archive, err := newProofArchive(ctx, cfg, gateway)
		if err != nil {
			return err
		}
		intakeOpts = append(intakeOpts, services.WithProofArchive(archive))
	}
	intake := services.NewIntakeService(intakeStore, cfg.PaymentMethods, cfg.OperatorID, notifier, intakeOpts...)
	if len(cfg.PaymentMethods) == 0 {
		log.Warn().Msg("No payment methods configured, purchases are disabled")
	}

	expiry := jobs.NewExpiryService(subscriptions, notifier, jobs.SweeperConfig{
		OperatorID:        cfg.OperatorID,
		Report:            cfg.Sweep.Report,
		NotifySubscribers: cfg.Sweep.NotifySubscribers,
	})
	scheduler, err := background.NewJobScheduler(expiry, intake, background.SchedulerConfig{
		SweepInterval: cfg.SweepInterval(),
		EvictInterval: cfg.EvictInterval(),
	})
	if err != nil {
		return err
	}

	dispatcher := handlers.NewDispatcher(
		handlers.NewOperatorHandlers(subscriptions, notifier, gateway),
		handlers.NewBuyerHandlers(intake, subscriptions, notifier),
		middleware.NewOperatorGuard(cfg.OperatorID),
		notifier,
	)

	e := newEcho()
	health := handlers.NewHealthHandlers(Version, scheduler, notifier)
	health.AddCheck("ledger", ledgerRepo, true)
	health.AddCheck("intake_store", intakeStore, true)
	health.AddCheck("telegram", gateway, false)
	health.RegisterRoutes(e)

	if cfg.Bot.Mode == "webhook" {
		hookURL, err := url.Parse(cfg.Bot.WebhookURL)
		if err != nil {
			return fmt.Errorf("parse webhook url: %w", err)
		}
		path := hookURL.Path
		if path == "" {
			path = "/"
		}
		e.POST(path, handlers.NewWebhookHandlers(gateway, dispatcher, cfg.Bot.WebhookSecret).Receive)
		if err := gateway.SetWebhook(cfg.Bot.WebhookURL, cfg.Bot.WebhookSecret); err != nil {
			return err
		}
	} else {
		go func() {
			if err := gateway.Poll(ctx, dispatcher); err != nil {
				log.Error().Err(err).Msg("Polling stopped")
			}
		}()
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	scheduler.Start()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if err := scheduler.Stop(); err != nil {
		log.Warn().Err(err).Msg("Scheduler did not stop cleanly")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not stop cleanly")
	}
	return nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("HTTP request")
			return nil
		},
	}))
	return e
}

func newIntakeStore(cfg *config.Config) (caching.IntakeStore, *redis.Client, error) {
	if cfg.Intake.Backend != "redis" {
		return caching.NewMemoryIntakeStore(cfg.IntakeTTL(), time.Now), nil, nil
	}
	client := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	return caching.NewRedisIntakeStore(client, cfg.IntakeTTL()), client, nil
}

func newProofArchive(ctx context.Context, cfg *config.Config, fetcher services.FileFetcher) (services.ProofArchive, error) {
	client, err := services.NewMinioClient(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	archive := services.NewProofArchive(client, cfg.Archive.Bucket, fetcher)
	if err := archive.EnsureBucketExists(ctx); err != nil {
		log.Warn().Err(err).Str("bucket", cfg.Archive.Bucket).Msg("Proof archive bucket unavailable, archiving will be retried per proof")
	}
	return archive, nil
}
