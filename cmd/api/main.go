package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finsync/internal/infrastructure/postgres"
	"finsync/internal/shared/config"
	"finsync/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				log.Printf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.ConnectionString()); err != nil {
			return err
		}
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// On-demand runs go through the scheduler's workers, so it always starts.
	// Disabling it only skips registering the stored cron schedules.
	if cfg.Scheduler.Enabled {
		if err := deps.Runtime.ScheduleActive(ctx); err != nil {
			log.Printf("Warning: some sync configs could not be scheduled: %v", err)
		}
	} else {
		log.Println("Scheduled syncs are disabled")
	}
	deps.Scheduler.Start()

	srv := StartServer(SetupRoutes(deps, cfg), cfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, deps.Scheduler, shutdownTimeout)
	return nil
}
