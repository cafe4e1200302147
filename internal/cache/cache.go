// Package cache provides a Redis-backed cache for generated segment
// criteria, so repeated audience descriptions don't burn AI credits.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key is not cached.
var ErrMiss = errors.New("cache: miss")

// SegmentCache caches generated criteria per workspace and description.
type SegmentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSegmentCache creates a cache over the given Redis client.
func NewSegmentCache(client *redis.Client, ttl time.Duration) *SegmentCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SegmentCache{client: client, ttl: ttl}
}

// key derives a stable cache key from the workspace and the normalized
// description text.
func (c *SegmentCache) key(workspaceID uuid.UUID, description string) string {
	normalized := strings.ToLower(strings.TrimSpace(description))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("segment:criteria:%s:%s", workspaceID, hex.EncodeToString(sum[:16]))
}

// Get returns the cached criteria JSON, or ErrMiss.
func (c *SegmentCache) Get(ctx context.Context, workspaceID uuid.UUID, description string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(workspaceID, description)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return val, nil
}

// Set stores criteria JSON with the configured TTL.
func (c *SegmentCache) Set(ctx context.Context, workspaceID uuid.UUID, description string, criteriaJSON []byte) error {
	if err := c.client.Set(ctx, c.key(workspaceID, description), criteriaJSON, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes a cached entry.
func (c *SegmentCache) Invalidate(ctx context.Context, workspaceID uuid.UUID, description string) error {
	if err := c.client.Del(ctx, c.key(workspaceID, description)).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}
