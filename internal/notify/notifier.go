package notify

import (
	"context"
	"fmt"

	"lodepa-air/internal/metrics"
	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// Notifier delivers a raised alarm to one downstream consumer
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event *models.AlarmEvent) error
}

// Message payload shared by every notifier
type Message struct {
	EventID     string                     `json:"event_id"`
	RoomID      string                     `json:"room_id"`
	DeviceID    string                     `json:"device_id"`
	Parameter   models.Parameter           `json:"parameter"`
	Name        string                     `json:"name,omitempty"`
	Unit        string                     `json:"unit,omitempty"`
	Status      models.Status              `json:"status"`
	Value       float64                    `json:"value"`
	Bounds      models.ThresholdDefinition `json:"bounds"`
	TriggeredAt int64                      `json:"triggered_at"`
}

// NewMessage flattens event, adding catalog presentation data when known
func NewMessage(event *models.AlarmEvent) Message {
	msg := Message{
		EventID:     event.EventID,
		RoomID:      event.RoomID,
		DeviceID:    event.DeviceID,
		Parameter:   event.Parameter,
		Status:      event.Status,
		Value:       event.Value,
		Bounds:      event.Bounds,
		TriggeredAt: event.TriggeredAt.Unix(),
	}
	if info, err := event.Parameter.Info(); err == nil {
		msg.Name = info.Name
		msg.Unit = info.Unit
	}
	return msg
}

// Multi fans an event out to every notifier. One failing never stops the others;
// the failures are logged, counted and returned joined.
type Multi struct {
	notifiers []Notifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewMulti(m *metrics.Metrics, logger *zap.Logger, notifiers ...Notifier) *Multi {
	return &Multi{
		notifiers: notifiers,
		metrics:   m,
		logger:    logger,
	}
}

func (n *Multi) Name() string { return "multi" }

func (n *Multi) Notify(ctx context.Context, event *models.AlarmEvent) error {
	var failed []string
	for _, notifier := range n.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			n.metrics.NotifyFailed(notifier.Name())
			n.logger.Error("Failed to notify alarm",
				zap.String("notifier", notifier.Name()),
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			failed = append(failed, notifier.Name())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notifiers failed: %v", failed)
	}
	return nil
}
