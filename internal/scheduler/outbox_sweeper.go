package scheduler

import (
	"context"
	"time"

	"portal_insights_backend/internal/insights/repository"
	"portal_insights_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	sweepInterval     = time.Minute
	sweepGrace        = 2 * time.Minute
	sweepRequeueAfter = 15 * time.Minute
	sweepBatch        = 50
)

// StrandedClaimer finds queued outbox rows without a live delivery task.
type StrandedClaimer interface {
	ClaimStrandedMessages(ctx context.Context, grace, requeueAfter time.Duration, limit int) ([]repository.QueuedRef, error)
}

type deliveryEnqueuer interface {
	EnqueueMessageDelivery(ctx context.Context, accountID, messageID uuid.UUID) error
}

// OutboxSweeper re-enqueues messages whose delivery task was never created,
// for example because redis was down when send_message ran.
type OutboxSweeper struct {
	client   deliveryEnqueuer
	repo     StrandedClaimer
	interval time.Duration
	log      *logger.Logger
}

func NewOutboxSweeper(client *Client, repo StrandedClaimer, log *logger.Logger) *OutboxSweeper {
	return &OutboxSweeper{client: client, repo: repo, interval: sweepInterval, log: log}
}

func (s *OutboxSweeper) Run(ctx context.Context) {
	if s == nil || s.client == nil || s.repo == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.sweep(ctx)
	}
}

// sweep runs one claim-and-enqueue pass and returns how many tasks it enqueued.
func (s *OutboxSweeper) sweep(ctx context.Context) int {
	refs, err := s.repo.ClaimStrandedMessages(ctx, sweepGrace, sweepRequeueAfter, sweepBatch)
	if err != nil {
		s.log.Warn("outbox claim failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, ref := range refs {
		if err := s.client.EnqueueMessageDelivery(ctx, ref.AccountID, ref.ID); err != nil {
			// enqueued_at was stamped by the claim; the row is retried after sweepRequeueAfter.
			s.log.Warn("outbox requeue failed", "message_id", ref.ID, "error", err)
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		s.log.Info("requeued stranded outbound messages", "count", enqueued)
	}
	return enqueued
}
