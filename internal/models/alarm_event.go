package models

import "time"

// AlarmEvent a raised threshold alarm (alarm_events table)
type AlarmEvent struct {
	EventID     string              `json:"event_id" db:"event_id"`
	RoomID      string              `json:"room_id" db:"room_id"`
	DeviceID    string              `json:"device_id" db:"device_id"`
	Parameter   Parameter           `json:"parameter" db:"parameter"`
	Status      Status              `json:"status" db:"status"`
	Value       float64             `json:"value" db:"value"` // normalized, display unit
	Bounds      ThresholdDefinition `json:"bounds"`
	TriggeredAt time.Time           `json:"triggered_at" db:"triggered_at"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Active true until the event is resolved
func (e *AlarmEvent) Active() bool {
	return e.ResolvedAt == nil
}
