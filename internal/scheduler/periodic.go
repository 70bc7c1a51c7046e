package scheduler

import (
	"context"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	defaultDailyRunCron  = "0 9 * * *"
	defaultReplyPollCron = "*/15 * * * *"
)

// Periodic enqueues the daily cycle and the reply poll on their cron specs.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := redisOpt(cfg)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("periodic enqueue failed", "error", err)
				return
			}
			log.Info("periodic task enqueued", "task", info.Type, "id", info.ID)
		},
	})

	queue := queueName(cfg)
	cycle := DailyCyclePayload{Category: cfg.GetDailyRunCategory(), Metro: cfg.GetDailyRunMetro()}
	if cycle.Category != "" && cycle.Metro != "" {
		task, err := NewDailyCycleTask(cycle)
		if err != nil {
			return nil, err
		}
		cronspec := cronOr(cfg.GetDailyRunCron(), defaultDailyRunCron)
		if _, err := s.Register(cronspec, task, asynq.Queue(queue), asynq.TaskID(dailyCycleID(cycle))); err != nil {
			return nil, err
		}
	} else {
		log.Warn("daily cycle not scheduled: category and metro are required")
	}

	cronspec := cronOr(cfg.GetReplyPollCron(), defaultReplyPollCron)
	if _, err := s.Register(cronspec, NewReplyPollTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: s, log: log}, nil
}

// Run blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}

func cronOr(cronspec, fallback string) string {
	if cronspec == "" {
		return fallback
	}
	return cronspec
}
