package models

// MonitoredDevice a device placed in a room, as listed for the sweep
type MonitoredDevice struct {
	DeviceID     string `json:"device_id" db:"device_id"`
	DeviceName   string `json:"device_name" db:"device_name"`
	RoomID       string `json:"room_id" db:"room_id"`
	RoomName     string `json:"room_name" db:"room_name"`
	HospitalID   string `json:"hospital_id" db:"hospital_id"`
	HospitalName string `json:"hospital_name" db:"hospital_name"`
}
