// Package cache stores assembled snapshots with a time-to-live.
package cache

import (
	"context"
	"time"

	"portal_insights_backend/internal/insights/domain"
)

// Entry is a cached snapshot and the instant it was written.
type Entry struct {
	Key       string          `json:"key"`
	Snapshot  domain.Snapshot `json:"snapshot"`
	WrittenAt time.Time       `json:"writtenAt"`
}

// Store is implemented by Memory and Redis. Get reports ok=false for
// missing or expired entries.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, snapshot domain.Snapshot) error
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
}
