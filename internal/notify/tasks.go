// Package notify turns domain events into transactional email. Events are
// enqueued as asynq tasks so delivery retries never block the request path;
// the worker process renders the Norwegian templates and sends.
package notify

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskTypeEmailSend is the asynq task type for outbound email.
const TaskTypeEmailSend = "email:send"

// QueueEmail is the asynq queue emails land on.
const QueueEmail = "email"

// EmailTask is the payload of a TaskTypeEmailSend task.
type EmailTask struct {
	Org        string `json:"org"`
	Topic      string `json:"topic"`
	To         string `json:"to"`
	OrderID    string `json:"orderId,omitempty"`
	TotalCents int64  `json:"totalCents,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

// NewEmailTask serialises the payload into an asynq task.
func NewEmailTask(t EmailTask) (*asynq.Task, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeEmailSend, raw, asynq.Queue(QueueEmail), asynq.MaxRetry(5)), nil
}
