package models

import "time"

// Reading one row written by the ingestion side. Values are raw, as stored.
type Reading struct {
	ID        int64                 `json:"id" db:"id"`
	DeviceID  string                `json:"device_id" db:"device_id"`
	RoomID    string                `json:"room_id" db:"room_id"`
	Timestamp time.Time             `json:"timestamp" db:"update_time"`
	Values    map[Parameter]float64 `json:"values"`
}

// SeriesPoint one normalized chart point
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
