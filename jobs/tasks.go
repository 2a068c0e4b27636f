package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/devcampus/devcampus/internal/mailer"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    string `json:"html,omitempty"`
}

func (p SendEmailPayload) validate() error {
	if strings.TrimSpace(p.To) == "" {
		return errors.New("jobs: email recipient required")
	}
	if strings.TrimSpace(p.Subject) == "" {
		return errors.New("jobs: email subject required")
	}
	return nil
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// EmailRecorder observes delivery outcomes.
type EmailRecorder interface {
	ObserveEmailJob(err error)
}

// EmailJob delivers TaskTypeSendEmail tasks through a mailer.
type EmailJob struct {
	sender   mailer.Sender
	recorder EmailRecorder
	logger   *slog.Logger
}

// NewEmailJob constructs the job. recorder may be nil.
func NewEmailJob(sender mailer.Sender, recorder EmailRecorder, logger *slog.Logger) *EmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailJob{sender: sender, recorder: recorder, logger: logger}
}

// Handle processes TaskTypeSendEmail tasks. Malformed payloads are not retried.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Warn("email job payload", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := payload.validate(); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	err := j.sender.Send(ctx, payload.To, payload.Subject, payload.Body, payload.HTML)
	if j.recorder != nil {
		j.recorder.ObserveEmailJob(err)
	}
	if err != nil {
		j.logger.Error("email job send", slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	j.logger.Info("email job sent", slog.String("subject", payload.Subject), slog.String("job", TaskTypeSendEmail))
	return nil
}
