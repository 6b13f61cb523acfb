package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotCached no snapshot for the device, or it expired
var ErrNotCached = errors.New("status not cached")

// DeviceStatus last sweep result of one device
type DeviceStatus struct {
	DeviceID    string                                    `json:"device_id"`
	RoomID      string                                    `json:"room_id"`
	ReadingAt   time.Time                                 `json:"reading_at"`
	EvaluatedAt time.Time                                 `json:"evaluated_at"`
	Overall     models.Status                             `json:"overall"`
	Statuses    map[models.Parameter]evaluator.Evaluation `json:"statuses"`
}

// NewDeviceStatus Overall is the worst status among entries that are not degraded
func NewDeviceStatus(deviceID string, reading *models.Reading, result evaluator.BatchResult, at time.Time) DeviceStatus {
	s := DeviceStatus{
		DeviceID:    deviceID,
		RoomID:      result.RoomID,
		ReadingAt:   reading.Timestamp,
		EvaluatedAt: at,
		Overall:     models.StatusGood,
		Statuses:    result.Statuses,
	}
	for _, ev := range result.Statuses {
		if !ev.Degraded && ev.Status > s.Overall {
			s.Overall = ev.Status
		}
	}
	return s
}

// StatusCache Redis snapshots of each device's classification, under <prefix><device_id>
type StatusCache struct {
	redisClient *redis.Client
	prefix      string
	ttl         time.Duration
	logger      *zap.Logger
}

func NewStatusCache(redisClient *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *StatusCache {
	return &StatusCache{
		redisClient: redisClient,
		prefix:      prefix,
		ttl:         ttl,
		logger:      logger,
	}
}

// UpdateDeviceStatus overwrites the device snapshot
func (c *StatusCache) UpdateDeviceStatus(ctx context.Context, status DeviceStatus) error {
	key := c.prefix + status.DeviceID

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal device status: %w", err)
	}
	if err := c.redisClient.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set status cache: %w", err)
	}

	c.logger.Debug("Updated status cache",
		zap.String("device_id", status.DeviceID),
		zap.String("key", key),
		zap.String("overall", status.Overall.String()),
	)
	return nil
}

// GetDeviceStatus ErrNotCached on a miss
func (c *StatusCache) GetDeviceStatus(ctx context.Context, deviceID string) (*DeviceStatus, error) {
	val, err := c.redisClient.Get(ctx, c.prefix+deviceID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotCached)
		}
		return nil, fmt.Errorf("failed to get status cache: %w", err)
	}

	var status DeviceStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device status: %w", err)
	}
	return &status, nil
}
