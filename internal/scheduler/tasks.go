package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDailyCycle = "pipeline.daily_cycle"

const TaskReplyPoll = "replies.poll"

type DailyCyclePayload struct {
	Category string `json:"category"`
	Metro    string `json:"metro"`
}

func NewDailyCycleTask(payload DailyCyclePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailyCycle, data, asynq.MaxRetry(0)), nil
}

func ParseDailyCyclePayload(task *asynq.Task) (DailyCyclePayload, error) {
	var payload DailyCyclePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DailyCyclePayload{}, err
	}
	return payload, nil
}

// NewReplyPollTask carries no payload; every poll reads the whole unseen set.
func NewReplyPollTask() *asynq.Task {
	return asynq.NewTask(TaskReplyPoll, nil, asynq.MaxRetry(0))
}
