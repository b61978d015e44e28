package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/northcraft/cabinetry-backend/internal/app"
	"github.com/northcraft/cabinetry-backend/internal/notifications"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/instance"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/mailer"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/idempotency"
	"github.com/northcraft/cabinetry-backend/pkg/pubsub"
	"github.com/northcraft/cabinetry-backend/pkg/redis"
	"github.com/northcraft/cabinetry-backend/pkg/sms"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "notifications-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "notifications-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notifications-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.NotificationsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "notifications subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	services, err := app.NewServices(cfg, app.Clients{DB: dbClient, Redis: redisClient}, logg)
	requireResource(ctx, logg, "domain services", err)

	mailClient, err := mailer.NewClient(cfg.Sendgrid, logg)
	requireResource(ctx, logg, "sendgrid", err)
	if !mailClient.Enabled() {
		logg.Warn(ctx, "sendgrid api key not set; emails will be dropped")
	}

	twilioCfg := cfg.Twilio
	if !cfg.FeatureFlags.SMSEnabled {
		twilioCfg = config.TwilioConfig{}
	}
	smsClient, err := sms.NewClient(twilioCfg, logg)
	requireResource(ctx, logg, "twilio", err)
	if !smsClient.Enabled() {
		logg.Warn(ctx, "sms delivery disabled")
	}

	svc, err := notifications.NewService(notifications.ServiceParams{
		Users:      notifications.NewRepository(dbClient.DB()),
		Mailer:     mailClient,
		SMS:        smsClient,
		Quotes:     services.Quotes,
		SalesInbox: cfg.Sendgrid.SalesInbox,
		PublicURL:  cfg.App.PublicURL,
		Logger:     logg,
	})
	requireResource(ctx, logg, "notifications service", err)

	consumer, err := notifications.NewConsumer(svc, subscription, manager, logg)
	requireResource(ctx, logg, "notifications consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "notifications worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "notifications worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "notifications worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
