package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/devcampus/devcampus/jobs"
)

// JobsCLI wraps manual management helpers for the email queue.
type JobsCLI struct {
	queue     jobs.Enqueuer
	inspector jobs.QueueInspector
}

// NewJobsCLI builds the helpers on top of an enqueuer and a queue inspector.
func NewJobsCLI(queue jobs.Enqueuer, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{queue: queue, inspector: inspector}
}

// SendTest queues a test email to the given address.
func (c *JobsCLI) SendTest(ctx context.Context, to string) error {
	if c == nil || c.queue == nil {
		return errors.New("jobs cli: queue not configured")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("jobs cli: recipient required")
	}
	return c.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      to,
		Subject: "DevCampus test email",
		Body:    "If you can read this, outbound email works.",
	})
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// Run executes a jobs subcommand: "stats" or "send-test <email>".
func (c *JobsCLI) Run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: jobs stats|send-test <email>")
	}
	switch args[0] {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return err
	case "send-test":
		if len(args) < 2 {
			return errors.New("usage: jobs send-test <email>")
		}
		if err := c.SendTest(ctx, args[1]); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "queued test email to %s\n", args[1])
		return err
	default:
		return fmt.Errorf("jobs cli: unknown command %q", args[0])
	}
}
