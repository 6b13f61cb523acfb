package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// ReadingRepository readings written by the ingestion side, plus the device/room
// placement they are evaluated under. Each catalog parameter is a nullable
// column of readings named after the parameter.
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

// readingColumns catalog order; identifiers come from the catalog, never from input
func readingColumns(alias string) string {
	params := models.Catalog()
	cols := make([]string, len(params))
	for i, p := range params {
		cols[i] = alias + "." + string(p)
	}
	return strings.Join(cols, ", ")
}

// GetLastReading the most recent reading of the device, ErrNotFound when it has none
func (r *ReadingRepository) GetLastReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	query := `
		SELECT r.id, r.device_id, d.room_id, r.update_time, ` + readingColumns("r") + `
		FROM readings r
		JOIN devices d ON d.device_id = r.device_id
		WHERE r.device_id = $1
		ORDER BY r.update_time DESC
		LIMIT 1
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query last reading: %w", err)
	}
	defer rows.Close()

	readings, err := collectReadings(rows)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("last reading of device %s: %w", deviceID, ErrNotFound)
	}
	return &readings[0], nil
}

// GetReadings every reading of the device in [from, to], oldest first
func (r *ReadingRepository) GetReadings(ctx context.Context, deviceID string, from, to time.Time) ([]models.Reading, error) {
	query := `
		SELECT r.id, r.device_id, d.room_id, r.update_time, ` + readingColumns("r") + `
		FROM readings r
		JOIN devices d ON d.device_id = r.device_id
		WHERE r.device_id = $1 AND r.update_time BETWEEN $2 AND $3
		ORDER BY r.update_time
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return collectReadings(rows)
}

// GetSeries raw values of one parameter in [from, to], oldest first. Missing values are skipped.
func (r *ReadingRepository) GetSeries(ctx context.Context, deviceID string, p models.Parameter, from, to time.Time) ([]models.SeriesPoint, error) {
	if !p.InCatalog() {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownParameter, p)
	}
	col := string(p)
	query := `
		SELECT update_time, ` + col + `
		FROM readings
		WHERE device_id = $1 AND update_time BETWEEN $2 AND $3 AND ` + col + ` IS NOT NULL
		ORDER BY update_time
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var points []models.SeriesPoint
	for rows.Next() {
		var pt models.SeriesPoint
		if err := rows.Scan(&pt.Timestamp, &pt.Value); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series: %w", err)
	}
	return points, nil
}

const deviceSelect = `
	SELECT d.device_id, d.device_name, rm.room_id, rm.room_name, h.hospital_id, h.hospital_name
	FROM devices d
	JOIN rooms rm ON rm.room_id = d.room_id
	JOIN hospitals h ON h.hospital_id = rm.hospital_id
`

// GetDevice ErrNotFound when the device is unknown or not placed in a room
func (r *ReadingRepository) GetDevice(ctx context.Context, deviceID string) (*models.MonitoredDevice, error) {
	var d models.MonitoredDevice
	err := r.db.QueryRowContext(ctx, deviceSelect+` WHERE d.device_id = $1`, deviceID).Scan(
		&d.DeviceID, &d.DeviceName, &d.RoomID, &d.RoomName, &d.HospitalID, &d.HospitalName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return &d, nil
}

// ListMonitoredDevices every device placed in a room
func (r *ReadingRepository) ListMonitoredDevices(ctx context.Context) ([]models.MonitoredDevice, error) {
	rows, err := r.db.QueryContext(ctx, deviceSelect+` ORDER BY h.hospital_id, rm.room_id, d.device_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var out []models.MonitoredDevice
	for rows.Next() {
		var d models.MonitoredDevice
		if err := rows.Scan(&d.DeviceID, &d.DeviceName, &d.RoomID, &d.RoomName, &d.HospitalID, &d.HospitalName); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return out, nil
}

func collectReadings(rows *sql.Rows) ([]models.Reading, error) {
	params := models.Catalog()
	values := make([]sql.NullFloat64, len(params))

	var out []models.Reading
	for rows.Next() {
		var rd models.Reading
		dest := []any{&rd.ID, &rd.DeviceID, &rd.RoomID, &rd.Timestamp}
		for i := range values {
			values[i] = sql.NullFloat64{}
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		rd.Values = make(map[models.Parameter]float64, len(params))
		for i, p := range params {
			if values[i].Valid {
				rd.Values[p] = values[i].Float64
			}
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return out, nil
}
