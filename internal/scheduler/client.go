package scheduler

import (
	"context"
	"errors"
	"time"

	"portal_insights_backend/platform/config"
	"portal_insights_backend/platform/redisconn"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	deliveryMaxRetry = 5
	deliveryTimeout  = time.Minute
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}
	return newClient(opt, cfg.GetAsynqQueueName()), nil
}

func newClient(opt asynq.RedisConnOpt, queue string) *Client {
	if queue == "" {
		queue = "default"
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueMessageDelivery schedules delivery of an outbox message. The task id
// is derived from the message id, so enqueueing a message that already has a
// pending task is a no-op.
func (c *Client) EnqueueMessageDelivery(ctx context.Context, accountID, messageID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewDeliverMessageTask(DeliverMessagePayload{
		MessageID: messageID.String(),
		AccountID: accountID.String(),
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(deliveryTaskID(messageID)),
		asynq.Queue(c.queue),
		asynq.MaxRetry(deliveryMaxRetry),
		asynq.Timeout(deliveryTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func deliveryTaskID(messageID uuid.UUID) string {
	return "deliver:" + messageID.String()
}

func redisClientOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	opt, err := redisconn.ParseOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
