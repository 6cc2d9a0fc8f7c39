package notify

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Asynq task type names.
const (
	TaskEmailConfirmation = "email:confirmation"
	TaskCreditMonthlyRun  = "credit:monthly_run"
)

// EmailTask is the payload of an email:confirmation task.
type EmailTask struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// NewEmailTask builds an asynq task carrying the message.
func NewEmailTask(msg EmailTask) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailConfirmation, payload, asynq.MaxRetry(5)), nil
}

// NewCreditRunTask builds the monthly auto-credit batch task.
func NewCreditRunTask() *asynq.Task {
	return asynq.NewTask(TaskCreditMonthlyRun, nil, asynq.MaxRetry(1))
}

// Enqueuer is the narrow slice of asynq.Client used by notifiers.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
