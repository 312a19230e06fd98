package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liamhowell4/budget-master-sub001/internal/interfaces/scheduler"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/config"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/telemetry"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shutdownTelemetry func(context.Context) error
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err = telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
			SampleRatio:  cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return err
		}
		log.Printf("Telemetry enabled, metrics on :%s", cfg.Telemetry.MetricsPort)
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
		return err
	}
	deps.StartBackground(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewScheduler(scheduler.SchedulerConfig{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			WorkerCount:   cfg.Scheduler.WorkerCount,
			JobDelay:      cfg.Scheduler.JobDelay,
			QueueSize:     cfg.Scheduler.QueueSize,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			Location:      cfg.Budget.Location,
			JobProvider:   scheduler.EvaluationJobProvider(deps.Recurring, deps.Evaluation, cfg.Budget.Location),
		})
		if err != nil {
			deps.Close()
			return err
		}
		sched.Start()
		log.Printf("Scheduler started with times: %v (%s)", cfg.Scheduler.ScheduleTimes, cfg.Budget.Location)
	} else {
		log.Println("Scheduler is disabled")
	}

	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg))

	<-ctx.Done()
	stop()

	GracefulShutdown(srv, redirectSrv, sched, deps, shutdownTelemetry, shutdownTimeout)
	return nil
}
