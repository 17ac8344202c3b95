package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "assistant:ratelimit:"

// admitScript increments the window counter and starts the window on the
// first hit. A key that lost its TTL gets one again.
var admitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Redis shares windows between API replicas. The key TTL is the window.
type Redis struct {
	client *redis.Client
	size   time.Duration
	max    int
}

func NewRedis(client *redis.Client, size time.Duration, max int) *Redis {
	if size <= 0 {
		size = DefaultWindow
	}
	if max < 1 {
		max = DefaultMax
	}
	return &Redis{client: client, size: size, max: max}
}

func (r *Redis) Admit(ctx context.Context, accountID uuid.UUID) (Decision, error) {
	res, err := admitScript.Run(ctx, r.client, []string{redisKeyPrefix + accountID.String()}, r.size.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis admit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis admit: unexpected reply %v", res)
	}

	count := int(res[0])
	if count <= r.max {
		return Decision{Allowed: true, Count: count}, nil
	}
	return Decision{Count: count, RetryAfter: time.Duration(res[1]) * time.Millisecond}, nil
}
