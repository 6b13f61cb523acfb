package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Stream entry fields written by PublishJSON
const (
	FieldData      = "data"
	FieldTimestamp = "timestamp"
)

// PublishJSON XADDs v as a JSON "data" field next to a unix "timestamp".
// maxLen > 0 trims the stream approximately.
func PublishJSON(ctx context.Context, client *redis.Client, stream string, maxLen int64, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream entry: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			FieldData:      string(data),
			FieldTimestamp: time.Now().Unix(),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return client.XAdd(ctx, args).Result()
}
