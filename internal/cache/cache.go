// Package cache stores computed pricing breakdowns keyed by assessment
// version and catalog version.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Simplici0/studio-quotes/internal/pricing"
)

const keyPrefix = "pricing:"

// Key identifies one cached breakdown.
type Key struct {
	AssessmentID   string
	Version        int
	CatalogVersion string
}

func (k Key) String() string {
	return fmt.Sprintf("%s%s:v%d:%s", keyPrefix, k.AssessmentID, k.Version, k.CatalogVersion)
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis caches breakdowns as JSON strings.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis. The connection is lazy; call Ping to verify.
func NewRedis(opts Options) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	return &Redis{client: rdb, ttl: opts.TTL}
}

// Ping tests the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// GetPricing returns the cached breakdown. ok is false on a miss.
func (r *Redis) GetPricing(ctx context.Context, key Key) (pricing.Breakdown, bool, error) {
	raw, err := r.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return pricing.Breakdown{}, false, nil
	}
	if err != nil {
		return pricing.Breakdown{}, false, fmt.Errorf("get %s: %w", key, err)
	}

	var b pricing.Breakdown
	if err := json.Unmarshal(raw, &b); err != nil {
		return pricing.Breakdown{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return b, true, nil
}

// SetPricing stores b under key with the configured TTL.
func (r *Redis) SetPricing(ctx context.Context, key Key, b pricing.Breakdown) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key.String(), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes every cached version of an assessment.
func (r *Redis) Invalidate(ctx context.Context, assessmentID string) error {
	pattern := keyPrefix + assessmentID + ":*"
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %d keys for %s: %w", len(keys), assessmentID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Noop is used when no Redis address is configured. Every lookup misses.
type Noop struct{}

func (Noop) GetPricing(context.Context, Key) (pricing.Breakdown, bool, error) {
	return pricing.Breakdown{}, false, nil
}

func (Noop) SetPricing(context.Context, Key, pricing.Breakdown) error { return nil }

func (Noop) Invalidate(context.Context, string) error { return nil }
