package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/viccon/sturdyc"

	"papyrus/internal/core/entity"
)

// EntityCache is an in-process read-through cache for entity payloads.
// Values are stored JSON-encoded so one cache serves every entity type.
// It implements Invalidator, keyed by the change records a save emits.
type EntityCache struct {
	client *sturdyc.Client[[]byte]
}

// EntityCacheConfig holds the cache sizing knobs.
type EntityCacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// DefaultEntityCacheConfig returns the default sizing.
func DefaultEntityCacheConfig() EntityCacheConfig {
	return EntityCacheConfig{
		Capacity: 10_000,
		TTL:      5 * time.Minute,
	}
}

// NewEntityCache creates the cache.
func NewEntityCache(cfg EntityCacheConfig) *EntityCache {
	const (
		numShards          = 256
		evictionPercentage = 10
	)
	return &EntityCache{
		client: sturdyc.New[[]byte](cfg.Capacity, numShards, cfg.TTL, evictionPercentage),
	}
}

// EntityKey is the cache key for a single entity.
func EntityKey(entityType string, id int64) string {
	return entityType + ":" + strconv.FormatInt(id, 10)
}

// ListKey is the cache key for list results of an entity type. Any committed
// change to the type evicts it.
func ListKey(entityType string) string {
	return entityType + ":list"
}

// GetOrFetch returns the cached value for key, fetching and caching it on a
// miss. In-flight fetches for the same key are deduplicated by the cache.
func GetOrFetch[T any](ctx context.Context, c *EntityCache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := c.client.GetOrFetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, nil
}

// Delete evicts a single key.
func (c *EntityCache) Delete(key string) {
	c.client.Delete(key)
}

// InvalidateBatch evicts the entry for each changed entity plus the list
// entry for its type.
func (c *EntityCache) InvalidateBatch(ctx context.Context, records []entity.ChangeRecord) error {
	seenLists := make(map[string]struct{}, len(records))
	for _, rec := range records {
		c.client.Delete(EntityKey(rec.EntityType, rec.EntityID))
		if _, ok := seenLists[rec.EntityType]; !ok {
			c.client.Delete(ListKey(rec.EntityType))
			seenLists[rec.EntityType] = struct{}{}
		}
	}
	return nil
}
