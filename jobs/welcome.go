package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/devcampus/devcampus/internal/profiles"
)

// Enqueuer submits email tasks.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error
}

// WelcomeMailer queues the welcome email for new members.
type WelcomeMailer struct {
	queue   Enqueuer
	baseURL string
}

// NewWelcomeMailer constructs a WelcomeMailer; baseURL links back to the site.
func NewWelcomeMailer(queue Enqueuer, baseURL string) *WelcomeMailer {
	return &WelcomeMailer{queue: queue, baseURL: strings.TrimRight(baseURL, "/")}
}

// Welcome enqueues the welcome email for p.
func (w *WelcomeMailer) Welcome(ctx context.Context, p profiles.Profile) error {
	body := fmt.Sprintf("Hi %s,\n\nWelcome to DevCampus. Your dashboard is at %s/dashboard.\n", p.FullName, w.baseURL)
	return w.queue.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      p.Email,
		Subject: "Welcome to DevCampus",
		Body:    body,
	})
}

var _ profiles.WelcomeNotifier = (*WelcomeMailer)(nil)
