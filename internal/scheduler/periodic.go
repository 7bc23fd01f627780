package scheduler

import (
	"context"
	"fmt"
	"time"

	"coast_crm_backend/platform/config"
	"coast_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues a cadence run task on a fixed interval.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	interval := cfg.GetFollowUpInterval()
	if interval <= 0 {
		interval = time.Hour
	}

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	task, err := NewFollowUpRunTask(FollowUpRunPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := sched.Register(fmt.Sprintf("@every %s", interval), task, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
