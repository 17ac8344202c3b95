// Package ratelimit throttles assistant traffic per account with a fixed
// window: the first request of a window starts it, and every request after
// the cap is rejected until the window ends.
package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 10
)

// Decision is the outcome of one Admit call. RetryAfter is only set when the
// request was rejected.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Limiter is implemented by the in-process and redis-backed stores.
type Limiter interface {
	Admit(ctx context.Context, accountID uuid.UUID) (Decision, error)
}
