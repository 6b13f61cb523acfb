package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// AlarmEventsRepository alarm_events
type AlarmEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAlarmEventsRepository(db *sql.DB, logger *zap.Logger) *AlarmEventsRepository {
	return &AlarmEventsRepository{
		db:     db,
		logger: logger,
	}
}

const alarmEventSelect = `
	SELECT
		event_id,
		room_id,
		device_id,
		parameter,
		status,
		value,
		min_good,
		max_good,
		min_warning,
		max_warning,
		bounds_source,
		triggered_at,
		resolved_at
	FROM alarm_events
`

// CreateAlarmEvent inserts event; EventID must be set by the caller
func (r *AlarmEventsRepository) CreateAlarmEvent(ctx context.Context, event *models.AlarmEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}

	query := `
		INSERT INTO alarm_events (
			event_id, room_id, device_id, parameter, status, value,
			min_good, max_good, min_warning, max_warning, bounds_source,
			triggered_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.RoomID,
		event.DeviceID,
		string(event.Parameter),
		event.Status.String(),
		event.Value,
		event.Bounds.MinGood,
		event.Bounds.MaxGood,
		event.Bounds.MinWarning,
		event.Bounds.MaxWarning,
		string(event.Bounds.Source),
		event.TriggeredAt,
		event.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alarm event: %w", err)
	}
	return nil
}

// GetActiveAlarms unresolved events of the room, newest first
func (r *AlarmEventsRepository) GetActiveAlarms(ctx context.Context, roomID string) ([]models.AlarmEvent, error) {
	query := alarmEventSelect + `
		WHERE room_id = $1 AND resolved_at IS NULL
		ORDER BY triggered_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alarms: %w", err)
	}
	defer rows.Close()

	return collectAlarmEvents(rows)
}

// ListAlarmEvents newest first; roomID empty lists every room
func (r *AlarmEventsRepository) ListAlarmEvents(ctx context.Context, roomID string, limit int) ([]models.AlarmEvent, error) {
	query := alarmEventSelect + `
		WHERE ($1 = '' OR room_id = $1)
		ORDER BY triggered_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarm events: %w", err)
	}
	defer rows.Close()

	return collectAlarmEvents(rows)
}

// ResolveAlarm marks an active event resolved; resolving twice is a no-op
func (r *AlarmEventsRepository) ResolveAlarm(ctx context.Context, eventID string, at time.Time) error {
	query := `UPDATE alarm_events SET resolved_at = $2 WHERE event_id = $1 AND resolved_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, eventID, at); err != nil {
		return fmt.Errorf("failed to resolve alarm event: %w", err)
	}
	return nil
}

func collectAlarmEvents(rows *sql.Rows) ([]models.AlarmEvent, error) {
	var out []models.AlarmEvent
	for rows.Next() {
		var (
			e          models.AlarmEvent
			param      string
			status     string
			source     string
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.EventID, &e.RoomID, &e.DeviceID, &param, &status, &e.Value,
			&e.Bounds.MinGood, &e.Bounds.MaxGood, &e.Bounds.MinWarning, &e.Bounds.MaxWarning, &source,
			&e.TriggeredAt, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alarm event: %w", err)
		}

		parsed, err := models.ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("alarm event %s: %w", e.EventID, err)
		}
		e.Status = parsed
		e.Parameter = models.Parameter(param)
		e.Bounds.Parameter = e.Parameter
		e.Bounds.Source = models.ThresholdSource(source)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			e.ResolvedAt = &t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm events: %w", err)
	}
	return out, nil
}
