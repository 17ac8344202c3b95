package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"portal_insights_backend/internal/insights/domain"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "insights:snapshot:"
	scanBatch      = 100
)

// Redis shares snapshots between API replicas. Expiry is enforced by the
// server through the key TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, now: time.Now}
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get snapshot: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is a miss; the next build overwrites it.
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, snapshot domain.Snapshot) error {
	data, err := json.Marshal(Entry{Key: key, Snapshot: snapshot, WrittenAt: r.now()})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+prefix+"*", scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan snapshots: %w", err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis delete snapshots: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
