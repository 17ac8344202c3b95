package scheduler

import (
	"context"
	"errors"
	"fmt"

	"portal_insights_backend/internal/delivery"
	"portal_insights_backend/platform/config"
	"portal_insights_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// MessageDeliverer sends one queued outbox message.
type MessageDeliverer interface {
	Deliver(ctx context.Context, accountID, messageID uuid.UUID, lastAttempt bool) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	deliverer MessageDeliverer
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, deliverer MessageDeliverer, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		deliverer: deliverer,
		log:       log,
	}
	w.mux.HandleFunc(TaskDeliverMessage, w.handleDeliverMessage)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleDeliverMessage(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDeliverMessagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return fmt.Errorf("message id: %v: %w", err, asynq.SkipRetry)
	}
	accountID, err := uuid.Parse(payload.AccountID)
	if err != nil {
		return fmt.Errorf("account id: %v: %w", err, asynq.SkipRetry)
	}

	err = w.deliverer.Deliver(ctx, accountID, messageID, isLastAttempt(ctx))
	if errors.Is(err, delivery.ErrPermanent) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}
