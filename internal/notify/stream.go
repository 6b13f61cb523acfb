package notify

import (
	"context"
	"fmt"

	"lodepa-air/internal/models"
	redisstream "lodepa-air/pkg/redis"

	"github.com/go-redis/redis/v8"
)

// StreamNotifier appends alarms to a Redis Stream
type StreamNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamNotifier(client *redis.Client, stream string, maxLen int64) *StreamNotifier {
	return &StreamNotifier{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (n *StreamNotifier) Name() string { return "stream" }

func (n *StreamNotifier) Notify(ctx context.Context, event *models.AlarmEvent) error {
	if _, err := redisstream.PublishJSON(ctx, n.client, n.stream, n.maxLen, NewMessage(event)); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", n.stream, err)
	}
	return nil
}
