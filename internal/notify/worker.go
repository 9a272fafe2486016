package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/obs"
)

// Worker processes email tasks from the queue.
type Worker struct {
	Sender common.EmailSender
	Log    zerolog.Logger
}

// HandleEmailTask renders and delivers one queued email. Render failures
// are permanent (no template will appear on retry); send failures are
// returned so asynq retries with backoff.
func (w *Worker) HandleEmailTask(ctx context.Context, task *asynq.Task) error {
	var t EmailTask
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		return fmt.Errorf("notify: decode task: %w: %v", asynq.SkipRetry, err)
	}
	subject, body, err := Render(t)
	if err != nil {
		obs.EmailDeliveryTotal.WithLabelValues(t.Topic, "skipped").Inc()
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := w.Sender.Send(t.To, subject, body); err != nil {
		obs.EmailDeliveryTotal.WithLabelValues(t.Topic, "error").Inc()
		return fmt.Errorf("notify: send email: %w", err)
	}
	obs.EmailDeliveryTotal.WithLabelValues(t.Topic, "ok").Inc()
	w.Log.Info().Str("topic", t.Topic).Str("org", t.Org).Msg("email delivered")
	return nil
}

// Mux returns an asynq mux with the worker's handlers registered.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeEmailSend, w.HandleEmailTask)
	return mux
}
