package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lodepa-air/internal/metrics"
	"lodepa-air/internal/models"
	"lodepa-air/internal/store"

	"go.uber.org/zap"
)

// CachedResolver caches the resolved table of each room under <prefix><room_id>.
// Entries expire after ttl and are dropped by Invalidate when a room's alert
// configuration changes. Cache failures fall through to next; errors are never cached.
type CachedResolver struct {
	next    Resolver
	kv      store.KV
	prefix  string
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCachedResolver(next Resolver, kv store.KV, prefix string, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{
		next:    next,
		kv:      kv,
		prefix:  prefix,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

func (c *CachedResolver) key(roomID string) string {
	return c.prefix + roomID
}

// Resolve answers from the room's cached table. On a miss it goes straight to the
// single lookup of next and caches nothing; only ResolveMany fills the cache.
func (c *CachedResolver) Resolve(ctx context.Context, roomID string, p models.Parameter) (models.ThresholdDefinition, error) {
	if table, ok := c.load(ctx, roomID); ok {
		c.metrics.CacheHit()
		return BoundsFor(table, p), nil
	}
	c.metrics.CacheMiss()
	return c.next.Resolve(ctx, roomID, p)
}

func (c *CachedResolver) ResolveMany(ctx context.Context, roomID string) (map[models.Parameter]models.ThresholdDefinition, error) {
	if table, ok := c.load(ctx, roomID); ok {
		c.metrics.CacheHit()
		return table, nil
	}
	c.metrics.CacheMiss()

	table, err := c.next.ResolveMany(ctx, roomID)
	if err != nil {
		return nil, err
	}
	c.save(ctx, roomID, table)
	return table, nil
}

// Invalidate drops the cached table of roomID
func (c *CachedResolver) Invalidate(ctx context.Context, roomID string) error {
	if err := c.kv.Del(ctx, c.key(roomID)); err != nil {
		return fmt.Errorf("failed to invalidate thresholds of room %s: %w", roomID, err)
	}
	return nil
}

// InvalidateAll drops every cached room table, for global threshold changes
func (c *CachedResolver) InvalidateAll(ctx context.Context) error {
	keys, err := c.kv.ScanKeys(ctx, c.prefix+"*")
	if err != nil {
		return fmt.Errorf("failed to scan threshold cache: %w", err)
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate threshold cache: %w", err)
	}
	return nil
}

func (c *CachedResolver) load(ctx context.Context, roomID string) (map[models.Parameter]models.ThresholdDefinition, bool) {
	raw, err := c.kv.Get(ctx, c.key(roomID))
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			c.logger.Warn("Threshold cache read failed",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
		}
		return nil, false
	}

	var table map[models.Parameter]models.ThresholdDefinition
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		c.logger.Warn("Discarding corrupt threshold cache entry",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return nil, false
	}
	return table, true
}

func (c *CachedResolver) save(ctx context.Context, roomID string, table map[models.Parameter]models.ThresholdDefinition) {
	data, err := json.Marshal(table)
	if err != nil {
		c.logger.Warn("Failed to marshal thresholds", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, c.key(roomID), string(data), c.ttl); err != nil {
		c.logger.Warn("Threshold cache write failed",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
	}
}
