package scheduler

import (
	"context"
	"fmt"

	"coast_crm_backend/internal/prospects/automation"
	"coast_crm_backend/platform/config"
	"coast_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	auto   *automation.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, auto *automation.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		auto:   auto,
		log:    log,
	}

	mux.HandleFunc(TaskFollowUpRun, w.handleFollowUpRun)

	return w, nil
}

func (w *Worker) handleFollowUpRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowUpRunPayload(task)
	if err != nil {
		return err
	}

	var actorID *uuid.UUID
	if payload.ActorID != "" {
		parsed, err := uuid.Parse(payload.ActorID)
		if err != nil {
			return err
		}
		actorID = &parsed
	}

	result := w.auto.ProcessFollowUps(ctx, actorID)
	w.log.Info("scheduled cadence run complete",
		"sent", result.Sent,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	for _, msg := range result.Errors {
		w.log.Warn("cadence run error", "error", msg)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
