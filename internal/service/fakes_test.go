package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"lodepa-air/internal/models"
	"lodepa-air/internal/repository"
)

var errDown = errors.New("connection refused")

func ptr(v float64) *float64 { return &v }

// fakeResolver fixed per-room tables; err fails every lookup
type fakeResolver struct {
	tables map[string]map[models.Parameter]models.ThresholdDefinition
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, roomID string, p models.Parameter) (models.ThresholdDefinition, error) {
	if f.err != nil {
		return models.ThresholdDefinition{}, f.err
	}
	if def, ok := f.tables[roomID][p]; ok {
		return def, nil
	}
	return models.NoBounds(p), nil
}

func (f *fakeResolver) ResolveMany(_ context.Context, roomID string) (map[models.Parameter]models.ThresholdDefinition, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[models.Parameter]models.ThresholdDefinition)
	for p, def := range f.tables[roomID] {
		out[p] = def
	}
	return out, nil
}

type fakeInvalidator struct {
	rooms []string
	all   int
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, roomID string) error {
	f.rooms = append(f.rooms, roomID)
	return f.err
}

func (f *fakeInvalidator) InvalidateAll(context.Context) error {
	f.all++
	return f.err
}

// fakeEvents in-memory alarm_events
type fakeEvents struct {
	mu         sync.Mutex
	events     []models.AlarmEvent
	lastLimit  int
	createErr  error
	resolveErr error
}

func (f *fakeEvents) CreateAlarmEvent(_ context.Context, event *models.AlarmEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEvents) GetActiveAlarms(_ context.Context, roomID string) ([]models.AlarmEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlarmEvent
	for _, e := range f.events {
		if e.RoomID == roomID && e.ResolvedAt == nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}

func (f *fakeEvents) ResolveAlarm(_ context.Context, eventID string, at time.Time) error {
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].EventID == eventID && f.events[i].ResolvedAt == nil {
			t := at
			f.events[i].ResolvedAt = &t
		}
	}
	return nil
}

func (f *fakeEvents) ListAlarmEvents(_ context.Context, roomID string, limit int) ([]models.AlarmEvent, error) {
	f.lastLimit = limit
	var out []models.AlarmEvent
	for _, e := range f.events {
		if roomID == "" || e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) active() []models.AlarmEvent {
	var out []models.AlarmEvent
	for _, e := range f.events {
		if e.ResolvedAt == nil {
			out = append(out, e)
		}
	}
	return out
}

type fakeNotifier struct {
	notified []*models.AlarmEvent
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(_ context.Context, event *models.AlarmEvent) error {
	f.notified = append(f.notified, event)
	return nil
}

// fakeConfigStore in-memory alert_configs keyed by id
type fakeConfigStore struct {
	configs map[int64]models.AlertConfig
	nextID  int64
	listErr error
}

func newFakeConfigStore(configs ...models.AlertConfig) *fakeConfigStore {
	s := &fakeConfigStore{configs: make(map[int64]models.AlertConfig), nextID: 1}
	for _, c := range configs {
		s.configs[c.ID] = c
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	return s
}

func (s *fakeConfigStore) ListAlertConfigs(_ context.Context, roomID string) ([]models.AlertConfig, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.AlertConfig
	for _, c := range s.configs {
		if roomID == "" || c.RoomID == roomID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeConfigStore) GetAlertConfig(_ context.Context, id int64) (*models.AlertConfig, error) {
	c, ok := s.configs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *fakeConfigStore) UpsertAlertConfig(_ context.Context, cfg *models.AlertConfig) (int64, error) {
	if cfg.ID == 0 {
		cfg.ID = s.nextID
		s.nextID++
	} else if _, ok := s.configs[cfg.ID]; !ok {
		return 0, repository.ErrNotFound
	}
	s.configs[cfg.ID] = *cfg
	return cfg.ID, nil
}

func (s *fakeConfigStore) DeleteAlertConfig(_ context.Context, id int64) (string, error) {
	c, ok := s.configs[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	delete(s.configs, id)
	return c.RoomID, nil
}

// fakeReadings one device with its readings, oldest first
type fakeReadings struct {
	device   *models.MonitoredDevice
	readings []models.Reading
	err      error
	from, to time.Time
}

func (f *fakeReadings) GetDevice(_ context.Context, deviceID string) (*models.MonitoredDevice, error) {
	if f.device == nil || f.device.DeviceID != deviceID {
		return nil, repository.ErrNotFound
	}
	d := *f.device
	return &d, nil
}

func (f *fakeReadings) GetLastReading(_ context.Context, deviceID string) (*models.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.readings) == 0 {
		return nil, repository.ErrNotFound
	}
	r := f.readings[len(f.readings)-1]
	return &r, nil
}

func (f *fakeReadings) GetReadings(_ context.Context, _ string, from, to time.Time) ([]models.Reading, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Reading
	for _, r := range f.readings {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReadings) GetSeries(_ context.Context, _ string, p models.Parameter, from, to time.Time) ([]models.SeriesPoint, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	var out []models.SeriesPoint
	for _, r := range f.readings {
		v, ok := r.Values[p]
		if !ok || r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, models.SeriesPoint{Timestamp: r.Timestamp, Value: v})
	}
	return out, nil
}

type fakeGlobalWriter struct {
	written []models.ThresholdDefinition
}

func (f *fakeGlobalWriter) UpsertGlobalThreshold(_ context.Context, def models.ThresholdDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	f.written = append(f.written, def)
	return nil
}
