package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/metrics"
	"lodepa-air/internal/models"
	"lodepa-air/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// AlarmEventStore satisfied by *repository.AlarmEventsRepository
type AlarmEventStore interface {
	CreateAlarmEvent(ctx context.Context, event *models.AlarmEvent) error
	GetActiveAlarms(ctx context.Context, roomID string) ([]models.AlarmEvent, error)
	ResolveAlarm(ctx context.Context, eventID string, at time.Time) error
	ListAlarmEvents(ctx context.Context, roomID string, limit int) ([]models.AlarmEvent, error)
}

// AlertConfigLister satisfied by *repository.AlertConfigRepository
type AlertConfigLister interface {
	ListAlertConfigs(ctx context.Context, roomID string) ([]models.AlertConfig, error)
}

// AlarmEventService raises and resolves threshold alarms from sweep results.
//
// An alarm is keyed by (room, device, parameter):
//   - WARNING or DANGER without an active alarm raises one;
//   - a different severity than the active alarm resolves it and raises a new one;
//   - GOOD resolves the active alarm;
//   - degraded entries are ignored.
//
// Raising happens only inside the active hours of one of the room's alert
// configurations (rooms without configurations always alarm) and not for
// parameters whose overrides are all disabled.
type AlarmEventService struct {
	events   AlarmEventStore
	configs  AlertConfigLister
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewAlarmEventService(
	events AlarmEventStore,
	configs AlertConfigLister,
	notifier notify.Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AlarmEventService {
	return &AlarmEventService{
		events:   events,
		configs:  configs,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// ListAlarmEvents newest first, limit defaults to 50 and is capped at 500
func (s *AlarmEventService) ListAlarmEvents(ctx context.Context, roomID string, limit int) ([]models.AlarmEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := s.events.ListAlarmEvents(ctx, roomID, limit)
	if err != nil {
		s.logger.Error("Failed to list alarm events", zap.String("room_id", roomID), zap.Error(err))
		return nil, fmt.Errorf("failed to list alarm events: %w", err)
	}
	return events, nil
}

// Process applies one device's classification to its alarms
func (s *AlarmEventService) Process(ctx context.Context, device models.MonitoredDevice, result evaluator.BatchResult) error {
	now := s.now()

	configs, err := s.configs.ListAlertConfigs(ctx, device.RoomID)
	if err != nil {
		return fmt.Errorf("failed to load alert configs: %w", err)
	}
	inHours, muted := alarmPolicy(configs, now)

	active, err := s.events.GetActiveAlarms(ctx, device.RoomID)
	if err != nil {
		return fmt.Errorf("failed to load active alarms: %w", err)
	}
	// newest first per parameter; more than one entry only after a failed resolve
	current := make(map[models.Parameter][]models.AlarmEvent)
	for _, e := range active {
		if e.DeviceID != device.DeviceID {
			continue
		}
		current[e.Parameter] = append(current[e.Parameter], e)
	}

	params := make([]models.Parameter, 0, len(result.Statuses))
	for p := range result.Statuses {
		params = append(params, p)
	}
	sort.Slice(params, func(i, j int) bool { return params[i] < params[j] })

	for _, p := range params {
		ev := result.Statuses[p]
		if ev.Degraded {
			continue
		}
		existing := current[p]

		if ev.Status == models.StatusGood {
			_ = s.resolveAll(ctx, existing, now)
			continue
		}

		if len(existing) > 0 && existing[0].Status == ev.Status {
			_ = s.resolveAll(ctx, existing[1:], now)
			continue
		}
		if !inHours || muted[p] {
			continue
		}
		// the old alarm must be closed first, or the key ends up with two active events
		if err := s.resolveAll(ctx, existing, now); err != nil {
			continue
		}
		s.raise(ctx, device, ev, now)
	}
	return nil
}

func (s *AlarmEventService) raise(ctx context.Context, device models.MonitoredDevice, ev evaluator.Evaluation, now time.Time) {
	event := &models.AlarmEvent{
		EventID:     uuid.New().String(),
		RoomID:      device.RoomID,
		DeviceID:    device.DeviceID,
		Parameter:   ev.Parameter,
		Status:      ev.Status,
		Value:       ev.Value,
		Bounds:      ev.Bounds,
		TriggeredAt: now,
	}

	if err := s.events.CreateAlarmEvent(ctx, event); err != nil {
		s.logger.Error("Failed to create alarm event",
			zap.String("device_id", device.DeviceID),
			zap.String("parameter", ev.Parameter.String()),
			zap.Error(err),
		)
		return
	}
	s.metrics.AlarmRaised(ev.Status.String())
	s.logger.Info("Alarm event created",
		zap.String("event_id", event.EventID),
		zap.String("room_id", device.RoomID),
		zap.String("device_id", device.DeviceID),
		zap.String("parameter", ev.Parameter.String()),
		zap.String("status", ev.Status.String()),
		zap.Float64("value", ev.Value),
	)

	if s.notifier != nil {
		// failures are logged by the notifier
		_ = s.notifier.Notify(ctx, event)
	}
}

// resolveAll tries every event and returns the first failure
func (s *AlarmEventService) resolveAll(ctx context.Context, events []models.AlarmEvent, now time.Time) error {
	var first error
	for _, e := range events {
		if err := s.resolve(ctx, e, now); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *AlarmEventService) resolve(ctx context.Context, event models.AlarmEvent, now time.Time) error {
	if err := s.events.ResolveAlarm(ctx, event.EventID, now); err != nil {
		s.logger.Error("Failed to resolve alarm event",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to resolve alarm event %s: %w", event.EventID, err)
	}
	s.metrics.AlarmResolved()
	s.logger.Info("Alarm event resolved",
		zap.String("event_id", event.EventID),
		zap.String("parameter", event.Parameter.String()),
	)
	return nil
}

// alarmPolicy whether now is inside the room's alerting hours, and which
// parameters have overrides that are all disabled
func alarmPolicy(configs []models.AlertConfig, now time.Time) (bool, map[models.Parameter]bool) {
	muted := make(map[models.Parameter]bool)
	if len(configs) == 0 {
		return true, muted
	}

	inHours := false
	enabled := make(map[models.Parameter]bool)
	for _, c := range configs {
		if c.ActiveAt(now) {
			inHours = true
		}
		for _, o := range c.Overrides {
			if o.Enabled {
				enabled[o.Parameter] = true
			} else if !enabled[o.Parameter] {
				muted[o.Parameter] = true
			}
		}
	}
	for p := range enabled {
		delete(muted, p)
	}
	return inHours, muted
}
