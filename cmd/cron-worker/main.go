package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/northcraft/cabinetry-backend/internal/app"
	"github.com/northcraft/cabinetry-backend/internal/cron"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/instance"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/metrics"
	"github.com/northcraft/cabinetry-backend/pkg/migrate"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/redis"
	"github.com/northcraft/cabinetry-backend/pkg/storage/gcs"
)

func main() {
	runOnce := flag.String("run", "", "run a single job by name and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	services, err := app.NewServices(cfg, app.Clients{DB: dbClient, Redis: redisClient, Storage: gcsClient}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build domain services", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, services, outbox.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	location, err := cfg.Business.Location()
	if err != nil {
		logg.Error(context.Background(), "invalid business timezone", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockScope(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Location: location,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	if *runOnce != "" {
		if err := service.RunNamed(ctx, *runOnce); err != nil {
			logg.Error(ctx, "cron job failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, services *app.Services, outboxRepo *outbox.Repository, logg *logger.Logger) (*cron.Registry, error) {
	quoteExpiry, err := cron.NewQuoteExpiryJob(services.Quotes, logg)
	if err != nil {
		return nil, err
	}
	paymentOverdue, err := cron.NewPaymentOverdueJob(services.Payments, logg)
	if err != nil {
		return nil, err
	}
	cartAbandon, err := cron.NewCartAbandonmentJob(services.Cart, cfg.Cron.CartAbandonAfterDays, logg)
	if err != nil {
		return nil, err
	}
	fileCleanup, err := cron.NewFileCleanupJob(services.Files, logg)
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, entry := range []cron.Entry{
		{Spec: cfg.Cron.QuoteExpirySchedule, Job: quoteExpiry},
		{Spec: cfg.Cron.PaymentOverdueSchedule, Job: paymentOverdue},
		{Spec: cfg.Cron.CartAbandonSchedule, Job: cartAbandon},
		{Spec: cfg.Cron.FileCleanupSchedule, Job: fileCleanup},
		{Spec: cfg.Cron.OutboxRetentionSchedule, Job: outboxRetention},
	} {
		if err := registry.Register(entry.Spec, entry.Job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func lockScope(env string) string {
	if env == "" {
		env = "local"
	}
	return env
}
