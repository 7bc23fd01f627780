package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"coast_crm_backend/internal/email"
	"coast_crm_backend/internal/prospects"
	"coast_crm_backend/internal/scheduler"
	"coast_crm_backend/platform/config"
	"coast_crm_backend/platform/db"
	platformevents "coast_crm_backend/platform/events"
	"coast_crm_backend/platform/logger"
	"coast_crm_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

// The scheduler binary runs the periodic cadence enqueuer and the asynq
// worker that executes the batches. It shares the prospects module wiring
// with the API binary but registers no HTTP routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "interval", cfg.FollowUpInterval.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := platformevents.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	val := validator.New()
	// The worker executes batches directly; it never enqueues its own tasks.
	prospectsModule := prospects.NewModule(pool, eventBus, sender, nil, val, cfg, log)

	worker, err := scheduler.NewWorker(cfg, prospectsModule.AutomationService(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		worker.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		periodic.Run(groupCtx)
		return nil
	})

	_ = group.Wait()
	log.Info("scheduler stopped")
}
