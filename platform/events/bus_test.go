package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"portal_insights_backend/platform/logger"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishRunsEveryHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	cancel()
	bus.Wait()

	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 handler calls, got %d", got)
	}
}

func TestPublishRecoversFromPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { panic("bad handler") }))
	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()
}

func TestFailingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var ctxErr atomic.Value
	var ran atomic.Bool
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return errors.New("boom") }))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		ran.Store(true)
		if err := ctx.Err(); err != nil {
			ctxErr.Store(err)
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if !ran.Load() {
		t.Fatalf("second handler did not run")
	}
	if v := ctxErr.Load(); v != nil {
		t.Fatalf("handler saw the publisher's cancellation: %v", v)
	}
}
