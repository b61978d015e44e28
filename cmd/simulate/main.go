package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/northcraft/cabinetry-backend/internal/app"
	"github.com/northcraft/cabinetry-backend/internal/users"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/migrate"
)

func main() {
	carts := flag.Int("carts", 0, "number of carts to drive (overrides CABINETRY_SIM_CARTS)")
	items := flag.Int("items", 0, "items per cart (overrides CABINETRY_SIM_ITEMS_PER_CART)")
	maxP95 := flag.Duration("max-p95", 0, "p95 latency budget per operation (overrides CABINETRY_SIM_MAX_P95)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "simulate"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "simulate"
	if *carts > 0 {
		cfg.Simulation.Carts = *carts
	}
	if *items > 0 {
		cfg.Simulation.ItemsPerCart = *items
	}
	if *maxP95 > 0 {
		cfg.Simulation.MaxP95Latency = *maxP95
	}

	logg = logger.New(logger.Options{
		ServiceName: "simulate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Catalog caching and object storage stay off so every call hits the database.
	cfg.FeatureFlags.CatalogCache = false
	services, err := app.NewServices(cfg, app.Clients{DB: dbClient}, logg)
	if err != nil {
		logg.Error(ctx, "failed to build domain services", err)
		os.Exit(1)
	}

	sim := &simulator{
		cfg:      cfg.Simulation,
		password: cfg.Password,
		services: services,
		users:    users.NewRepository(dbClient.DB()),
		db:       dbClient.DB(),
		logg:     logg,
		timings:  newLatencies(),
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"carts":          cfg.Simulation.Carts,
		"items_per_cart": cfg.Simulation.ItemsPerCart,
	})
	logg.Info(ctx, "starting simulation")

	result, err := sim.run(ctx)
	if err != nil {
		logg.Error(ctx, "simulation aborted", err)
		os.Exit(1)
	}

	for _, s := range result.Stats {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"op":     s.Op,
			"count":  s.Count,
			"p50_ms": s.P50.Milliseconds(),
			"p95_ms": s.P95.Milliseconds(),
		}), "operation latency")
	}

	failures := result.Failures
	for _, s := range slowOps(result.Stats, cfg.Simulation.MaxP95Latency) {
		failures = multierr.Append(failures, latencyError{op: s.Op, p95: s.P95, budget: cfg.Simulation.MaxP95Latency})
	}

	summary := logg.WithFields(ctx, map[string]any{
		"run":        result.RunTag,
		"customer":   result.Customer.String(),
		"carts":      result.Carts,
		"completed":  result.Completed,
		"items":      result.Items,
		"quotes":     result.Quotes,
		"orders":     result.Orders,
		"mismatches": result.Mismatch,
	})
	if failures != nil {
		for _, err := range multierr.Errors(failures) {
			logg.Error(summary, "simulation check failed", err)
		}
		os.Exit(1)
	}
	logg.Info(summary, "simulation passed")
}
