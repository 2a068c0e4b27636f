package admin

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/devcampus/devcampus/jobs"
)

// broadcastConcurrency caps in-flight enqueue calls.
const broadcastConcurrency = 8

// Broadcaster queues one email task per recipient.
type Broadcaster struct {
	queue jobs.Enqueuer
	limit int
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(queue jobs.Enqueuer) *Broadcaster {
	return &Broadcaster{queue: queue, limit: broadcastConcurrency}
}

// Broadcast enqueues the message for every non-blank recipient and returns how
// many tasks were queued. The first enqueue error stops the remaining work.
func (b *Broadcaster) Broadcast(ctx context.Context, recipients []string, subject, body string) (int, error) {
	var queued atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for _, to := range recipients {
		to = strings.TrimSpace(to)
		if to == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := b.queue.EnqueueSendEmail(gctx, jobs.SendEmailPayload{To: to, Subject: subject, Body: body}); err != nil {
				return err
			}
			queued.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(queued.Load()), err
}
