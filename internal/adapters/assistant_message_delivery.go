package adapters

import (
	"context"

	"portal_insights_backend/internal/assistant/ports"

	"github.com/google/uuid"
)

type DeliveryEnqueuer interface {
	EnqueueMessageDelivery(ctx context.Context, accountID, messageID uuid.UUID) error
}

type EnqueueMarker interface {
	MarkMessageEnqueued(ctx context.Context, accountID, messageID uuid.UUID) error
}

// AssistantMessageDelivery hands queued messages to the scheduler and stamps
// the outbox row so the stranded-message sweeper leaves it alone.
type AssistantMessageDelivery struct {
	queue  DeliveryEnqueuer
	outbox EnqueueMarker
}

func NewAssistantMessageDelivery(queue DeliveryEnqueuer, outbox EnqueueMarker) *AssistantMessageDelivery {
	return &AssistantMessageDelivery{queue: queue, outbox: outbox}
}

func (a *AssistantMessageDelivery) EnqueueDelivery(ctx context.Context, accountID, messageID uuid.UUID) error {
	if err := a.queue.EnqueueMessageDelivery(ctx, accountID, messageID); err != nil {
		return err
	}
	// Best effort: without the stamp the sweeper enqueues again, which the
	// task id makes harmless.
	_ = a.outbox.MarkMessageEnqueued(ctx, accountID, messageID)
	return nil
}

var _ ports.MessageDelivery = (*AssistantMessageDelivery)(nil)
