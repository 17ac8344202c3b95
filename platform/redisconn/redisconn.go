// Package redisconn builds redis connections from configuration.
// This is part of the platform layer and contains no business logic.
package redisconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"portal_insights_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// ParseOptions parses a redis:// or rediss:// URL. tlsInsecure skips
// certificate verification for managed providers with self-signed chains.
func ParseOptions(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		opt.TLSConfig = clone
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opt, nil
}

// New opens a client and verifies it with PING.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := ParseOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
