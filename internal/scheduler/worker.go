package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"outreach_backend/internal/pipeline"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Runner is the part of the orchestrator the worker drives.
type Runner interface {
	RunDaily(ctx context.Context, category, metro string) []pipeline.Result
	CheckReplies(ctx context.Context) pipeline.Result
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner Runner, log *logger.Logger) (*Worker, error) {
	opt, err := redisOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(runner, log)
	w.server = server
	return w, nil
}

func newWorker(runner Runner, log *logger.Logger) *Worker {
	w := &Worker{
		mux:    asynq.NewServeMux(),
		runner: runner,
		log:    log,
	}
	w.mux.HandleFunc(TaskDailyCycle, w.handleDailyCycle)
	w.mux.HandleFunc(TaskReplyPoll, w.handleReplyPoll)
	return w
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// A failed stage is logged and the task still completes, so its task id is
// released and the next scheduled cycle runs as the retry. Only a payload
// that cannot be decoded is archived.
func (w *Worker) handleDailyCycle(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDailyCyclePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	results := w.runner.RunDaily(ctx, payload.Category, payload.Metro)
	w.report(task.Type(), results...)
	return nil
}

func (w *Worker) handleReplyPoll(ctx context.Context, task *asynq.Task) error {
	w.report(task.Type(), w.runner.CheckReplies(ctx))
	return nil
}

func (w *Worker) report(taskType string, results ...pipeline.Result) {
	if err := failedStages(results...); err != nil {
		w.log.Warn("scheduled task finished with failed stages", "task", taskType, "error", err)
	}
}

func failedStages(results ...pipeline.Result) error {
	var failed []string
	for _, r := range results {
		if !r.OK {
			failed = append(failed, r.Stage+": "+r.Error)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New(strings.Join(failed, "; "))
}
