package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is the cache lifetime for read-side payloads. Entries are also
// invalidated explicitly on writes, so the TTL only bounds staleness when an
// invalidation is lost.
const DefaultTTL = 5 * time.Minute

// Cache is a best-effort JSON read cache. A Redis outage degrades every
// operation to a miss or a no-op; it never fails the request.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Cache{client: client, ttl: DefaultTTL}, nil
}

// NewWithClient wraps an existing client, used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("redis.Cache.Close: %w", err)
	}
	return nil
}

// Get loads the cached value for key into dest. Returns false on a miss, a
// decode failure, or a Redis error.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, dropping")
		c.Invalidate(ctx, key)
		return false
	}

	return true
}

// Set stores value under key for the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Invalidate removes keys after a write so the next read repopulates them.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidate failed")
	}
}

// ProjectTasksKey is the cache key for a project's task list.
func ProjectTasksKey(projectID uuid.UUID) string {
	return "tasks:" + projectID.String()
}

// ProjectMembersKey is the cache key for a project's member list.
func ProjectMembersKey(projectID uuid.UUID) string {
	return "members:" + projectID.String()
}

// TaskCommentsKey is the cache key for a task's comment list.
func TaskCommentsKey(taskID uuid.UUID) string {
	return "comments:" + taskID.String()
}
