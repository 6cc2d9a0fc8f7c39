package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/solvieth/verslun-api/internal/common"
)

// EmailWorker delivers queued confirmation emails through the configured
// sender.
type EmailWorker struct {
	Mail   common.EmailSender
	Logger zerolog.Logger
}

// Handle processes an email:confirmation task. Errors are returned so
// asynq retries with backoff up to the task's MaxRetry.
func (w EmailWorker) Handle(_ context.Context, task *asynq.Task) error {
	var msg EmailTask
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("email worker: decode task: %v: %w", err, asynq.SkipRetry)
	}
	if w.Mail == nil {
		return fmt.Errorf("email worker: sender not configured: %w", asynq.SkipRetry)
	}
	if err := w.Mail.Send(msg.To, msg.Subject, msg.HTML); err != nil {
		w.Logger.Error().Err(err).Str("to", msg.To).Msg("send confirmation email")
		return err
	}
	w.Logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("confirmation email sent")
	return nil
}
