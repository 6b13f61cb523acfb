package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"lodepa-air/internal/models"
)

// Publisher satisfied by *mqtt.Client
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier publishes alarms on <prefix>/<room_id>/<parameter>
type MQTTNotifier struct {
	publisher Publisher
	prefix    string
	qos       byte
}

func NewMQTTNotifier(publisher Publisher, prefix string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{
		publisher: publisher,
		prefix:    prefix,
		qos:       qos,
	}
}

func (n *MQTTNotifier) Name() string { return "mqtt" }

// Topic the topic event is published on
func (n *MQTTNotifier) Topic(event *models.AlarmEvent) string {
	return fmt.Sprintf("%s/%s/%s", n.prefix, event.RoomID, event.Parameter)
}

func (n *MQTTNotifier) Notify(_ context.Context, event *models.AlarmEvent) error {
	payload, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal alarm: %w", err)
	}
	return n.publisher.Publish(n.Topic(event), n.qos, false, payload)
}
