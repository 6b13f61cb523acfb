package consumer

import (
	"context"
	"testing"
	"time"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupStatusCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatusCache(client, "air:status:", 5*time.Minute, zap.NewNop()), mr
}

func TestNewDeviceStatus_OverallIgnoresDegraded(t *testing.T) {
	reading := &models.Reading{Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	result := evaluator.BatchResult{
		RoomID: "room-1",
		Statuses: map[models.Parameter]evaluator.Evaluation{
			models.CO2:         {Parameter: models.CO2, Status: models.StatusWarning},
			models.Temperature: {Parameter: models.Temperature, Status: models.StatusGood},
			models.PM25:        {Parameter: models.PM25, Status: models.StatusGood, Degraded: true},
		},
	}

	s := NewDeviceStatus("dev-1", reading, result, time.Now())
	assert.Equal(t, models.StatusWarning, s.Overall)
	assert.Equal(t, "room-1", s.RoomID)
	assert.Equal(t, reading.Timestamp, s.ReadingAt)
}

func TestStatusCache_RoundTrip(t *testing.T) {
	cache, mr := setupStatusCache(t)
	ctx := context.Background()

	status := DeviceStatus{
		DeviceID:    "dev-1",
		RoomID:      "room-1",
		ReadingAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		EvaluatedAt: time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC),
		Overall:     models.StatusDanger,
		Statuses: map[models.Parameter]evaluator.Evaluation{
			models.CO2: {Parameter: models.CO2, Raw: 850, Value: 850, Display: 850, Status: models.StatusDanger},
		},
	}
	require.NoError(t, cache.UpdateDeviceStatus(ctx, status))
	assert.Equal(t, 5*time.Minute, mr.TTL("air:status:dev-1"))

	got, err := cache.GetDeviceStatus(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDanger, got.Overall)
	assert.Equal(t, 850.0, got.Statuses[models.CO2].Display)
	assert.True(t, status.ReadingAt.Equal(got.ReadingAt))
}

func TestStatusCache_Miss(t *testing.T) {
	cache, _ := setupStatusCache(t)

	_, err := cache.GetDeviceStatus(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotCached)
}
