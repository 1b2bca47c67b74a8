package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"financas/internal/cli"
	"financas/internal/log"
	"financas/internal/services"
	"financas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting financas-worker", "backend", cfg.DataBackend)

	store := cli.InitStore(context.Background(), logger, cfg)
	// The worker consumes events and never publishes them.
	svc := cli.NewFinanceService(store, nil, logger, cfg)
	defer closeService(logger, svc)

	consumer := cli.InitAMQP(logger, cfg)
	if consumer != nil {
		defer consumer.Close()
	}

	monitor := worker.NewBudgetMonitor(svc, logger)
	scheduler, err := worker.NewScheduler(monitor, cfg.BudgetRefreshSchedule, cfg.BudgetRolloverSchedule, logger)
	if err != nil {
		logger.Error("Failed to configure scheduler", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, scheduler.Stop)

	// Catch up on anything that changed while the worker was down.
	if _, err := monitor.Rollover(ctx); err != nil {
		logger.Error("Startup rollover failed", log.FieldError, err)
	}
	if _, err := monitor.Refresh(ctx); err != nil {
		logger.Error("Startup refresh failed", log.FieldError, err)
	}

	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			err := consumer.Consume(gctx, monitor.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("AMQP disabled, running scheduled jobs only")
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		scheduler.Stop(context.Background())
		return
	}
	<-done
	logger.Info("Worker stopped gracefully")
}

func closeService(logger *log.Logger, svc *services.FinanceService) {
	if err := svc.Close(); err != nil {
		logger.Error("Failed to release resources", log.FieldError, err)
	}
}
