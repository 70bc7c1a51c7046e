package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues pipeline tasks for the worker.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDailyCycle queues one daily run. A cycle for the same category and
// metro that is still queued or running is not queued twice.
func (c *Client) EnqueueDailyCycle(ctx context.Context, payload DailyCyclePayload) (string, error) {
	task, err := NewDailyCycleTask(payload)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(dailyCycleID(payload)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return "", apperr.Conflict("a daily cycle for this category and metro is already queued")
	}
	if err != nil {
		return "", apperr.Transient("enqueue daily cycle", err)
	}
	return info.ID, nil
}

func (c *Client) EnqueueReplyPoll(ctx context.Context) (string, error) {
	info, err := c.client.EnqueueContext(ctx, NewReplyPollTask(), asynq.Queue(c.queue))
	if err != nil {
		return "", apperr.Transient("enqueue reply poll", err)
	}
	return info.ID, nil
}

func dailyCycleID(p DailyCyclePayload) string {
	return fmt.Sprintf("%s:%s:%s", TaskDailyCycle, p.Category, p.Metro)
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func redisOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	return redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
