// Package dedupcache keeps run-scoped fingerprint sets in Redis so several workers can share them.
package dedupcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsPipeline/internal/ports"
)

const defaultTTL = time.Hour

// RedisSeenSets opens fingerprint sets stored under dedup:<workspace>:<run key>.
type RedisSeenSets struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.SeenSets = (*RedisSeenSets)(nil)

// NewRedisSeenSets wraps an existing client. Sets expire after ttl even when never released.
func NewRedisSeenSets(client *redis.Client, ttl time.Duration) *RedisSeenSets {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisSeenSets{client: client, ttl: ttl}
}

// NewRedisSeenSetsWithURL creates the client from a redis:// URL.
func NewRedisSeenSetsWithURL(url string, ttl time.Duration) (*RedisSeenSets, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisSeenSets(redis.NewClient(opts), ttl), nil
}

// Ping checks the connection.
func (r *RedisSeenSets) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisSeenSets) Close() error {
	return r.client.Close()
}

// Open returns the set of one run.
func (r *RedisSeenSets) Open(workspace, runKey string) ports.SeenSet {
	return &seenSet{
		client: r.client,
		key:    Key(workspace, runKey),
		ttl:    r.ttl,
	}
}

// Key is the Redis key holding the fingerprints of a run.
func Key(workspace, runKey string) string {
	return "dedup:" + workspace + ":" + runKey
}

type seenSet struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// Remember adds the fingerprint and refreshes the expiry in one transaction.
func (s *seenSet) Remember(ctx context.Context, fingerprint string) (bool, error) {
	var added *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, s.key, fingerprint)
		pipe.Expire(ctx, s.key, s.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remember fingerprint: %w", err)
	}
	return added.Val() == 0, nil
}

// Release drops the whole set.
func (s *seenSet) Release(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("release seen set %s: %w", s.key, err)
	}
	return nil
}
