package service

import (
	"context"
	"testing"
	"time"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var co2Bounds = models.ThresholdDefinition{
	Parameter: models.CO2, MinGood: 400, MaxGood: 800, MinWarning: 400, MaxWarning: 1000,
	Source: models.SourceGlobal,
}

var ward = models.MonitoredDevice{DeviceID: "dev-1", RoomID: "room-1"}

func batch(evs ...evaluator.Evaluation) evaluator.BatchResult {
	r := evaluator.BatchResult{RoomID: ward.RoomID, Statuses: map[models.Parameter]evaluator.Evaluation{}}
	for _, ev := range evs {
		r.Statuses[ev.Parameter] = ev
	}
	return r
}

func co2(status models.Status, value float64) evaluator.Evaluation {
	return evaluator.Evaluation{Parameter: models.CO2, Raw: value, Value: value, Status: status, Bounds: co2Bounds}
}

func setupAlarmService(configs ...models.AlertConfig) (*AlarmEventService, *fakeEvents, *fakeNotifier, *time.Time) {
	events := &fakeEvents{}
	notifier := &fakeNotifier{}
	svc := NewAlarmEventService(events, newFakeConfigStore(configs...), notifier, nil, zap.NewNop())
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, events, notifier, &now
}

func TestAlarmEventService_RaiseOnce(t *testing.T) {
	svc, events, notifier, now := setupAlarmService()
	ctx := context.Background()

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusWarning, 900))))
	*now = now.Add(time.Minute)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusWarning, 950))))

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, "room-1", e.RoomID)
	assert.Equal(t, "dev-1", e.DeviceID)
	assert.Equal(t, models.StatusWarning, e.Status)
	assert.Equal(t, 900.0, e.Value)
	assert.Equal(t, co2Bounds, e.Bounds)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, e.EventID, notifier.notified[0].EventID)
}

func TestAlarmEventService_SeverityChange(t *testing.T) {
	svc, events, notifier, now := setupAlarmService()
	ctx := context.Background()

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusWarning, 900))))
	*now = now.Add(time.Minute)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))

	require.Len(t, events.events, 2)
	assert.NotNil(t, events.events[0].ResolvedAt)
	active := events.active()
	require.Len(t, active, 1)
	assert.Equal(t, models.StatusDanger, active[0].Status)
	assert.Len(t, notifier.notified, 2)
}

func TestAlarmEventService_SeverityChangeWaitsForResolve(t *testing.T) {
	svc, events, notifier, now := setupAlarmService()
	ctx := context.Background()

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusWarning, 900))))

	events.resolveErr = errDown
	*now = now.Add(time.Minute)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))

	// the warning could not be closed, so no danger alarm is stacked on top of it
	require.Len(t, events.events, 1)
	assert.Len(t, events.active(), 1)
	assert.Len(t, notifier.notified, 1)

	events.resolveErr = nil
	*now = now.Add(time.Minute)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))
	active := events.active()
	require.Len(t, active, 1)
	assert.Equal(t, models.StatusDanger, active[0].Status)

	*now = now.Add(time.Minute)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusGood, 600))))
	assert.Empty(t, events.active())
}

func TestAlarmEventService_GoodResolvesEveryActiveEvent(t *testing.T) {
	svc, events, _, now := setupAlarmService()
	ctx := context.Background()

	older := now.Add(-2 * time.Minute)
	newer := now.Add(-time.Minute)
	events.events = []models.AlarmEvent{
		{EventID: "e1", RoomID: ward.RoomID, DeviceID: ward.DeviceID, Parameter: models.CO2, Status: models.StatusWarning, TriggeredAt: older},
		{EventID: "e2", RoomID: ward.RoomID, DeviceID: ward.DeviceID, Parameter: models.CO2, Status: models.StatusDanger, TriggeredAt: newer},
	}

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusGood, 600))))
	assert.Empty(t, events.active())
}

func TestAlarmEventService_SameSeverityClosesStaleDuplicates(t *testing.T) {
	svc, events, notifier, now := setupAlarmService()
	ctx := context.Background()

	events.events = []models.AlarmEvent{
		{EventID: "e1", RoomID: ward.RoomID, DeviceID: ward.DeviceID, Parameter: models.CO2, Status: models.StatusWarning, TriggeredAt: now.Add(-2 * time.Minute)},
		{EventID: "e2", RoomID: ward.RoomID, DeviceID: ward.DeviceID, Parameter: models.CO2, Status: models.StatusDanger, TriggeredAt: now.Add(-time.Minute)},
	}

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))

	active := events.active()
	require.Len(t, active, 1)
	assert.Equal(t, "e2", active[0].EventID)
	assert.Empty(t, notifier.notified)
}

func TestAlarmEventService_GoodResolves(t *testing.T) {
	svc, events, notifier, now := setupAlarmService()
	ctx := context.Background()

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))
	*now = now.Add(time.Minute)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusGood, 600))))

	require.Len(t, events.events, 1)
	require.NotNil(t, events.events[0].ResolvedAt)
	assert.Equal(t, *now, *events.events[0].ResolvedAt)
	assert.Empty(t, events.active())
	assert.Len(t, notifier.notified, 1)
}

func TestAlarmEventService_DegradedIgnored(t *testing.T) {
	svc, events, _, _ := setupAlarmService()
	ctx := context.Background()

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))

	degraded := co2(models.StatusGood, 600)
	degraded.Degraded = true
	degraded.Bounds = models.NoBounds(models.CO2)
	require.NoError(t, svc.Process(ctx, ward, batch(degraded)))

	// a degraded GOOD must not resolve the alarm either
	assert.Len(t, events.active(), 1)
}

func TestAlarmEventService_ActiveHours(t *testing.T) {
	night := models.AlertConfig{ID: 1, RoomID: "room-1", HourMin: 22, HourMax: 6}
	svc, events, _, now := setupAlarmService(night)
	ctx := context.Background()

	// 10:00 is outside 22-6
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))
	assert.Empty(t, events.events)

	*now = time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500))))
	require.Len(t, events.events, 1)

	// resolution is not limited by active hours
	*now = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusGood, 500))))
	assert.Empty(t, events.active())
}

func TestAlarmEventService_MutedParameter(t *testing.T) {
	cfg := models.AlertConfig{
		ID: 1, RoomID: "room-1",
		Overrides: []models.ThresholdOverride{{Parameter: models.CO2, Enabled: false}},
	}
	svc, events, _, _ := setupAlarmService(cfg)
	ctx := context.Background()

	pm := evaluator.Evaluation{Parameter: models.PM25, Value: 50, Status: models.StatusDanger,
		Bounds: models.ThresholdDefinition{Parameter: models.PM25, MaxGood: 15, MaxWarning: 35, Source: models.SourceGlobal}}
	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusDanger, 1500), pm)))

	require.Len(t, events.events, 1)
	assert.Equal(t, models.PM25, events.events[0].Parameter)
}

func TestAlarmEventService_PerDevice(t *testing.T) {
	svc, events, _, _ := setupAlarmService()
	ctx := context.Background()
	other := models.MonitoredDevice{DeviceID: "dev-2", RoomID: "room-1"}

	require.NoError(t, svc.Process(ctx, ward, batch(co2(models.StatusWarning, 900))))
	require.NoError(t, svc.Process(ctx, other, batch(co2(models.StatusWarning, 900))))
	require.NoError(t, svc.Process(ctx, other, batch(co2(models.StatusGood, 500))))

	active := events.active()
	require.Len(t, active, 1)
	assert.Equal(t, "dev-1", active[0].DeviceID)
}

func TestAlarmEventService_ConfigError(t *testing.T) {
	events := &fakeEvents{}
	configs := newFakeConfigStore()
	configs.listErr = errDown
	svc := NewAlarmEventService(events, configs, nil, nil, zap.NewNop())

	err := svc.Process(context.Background(), ward, batch(co2(models.StatusDanger, 1500)))
	assert.ErrorIs(t, err, errDown)
	assert.Empty(t, events.events)
}

func TestAlarmEventService_ListLimit(t *testing.T) {
	svc, events, _, _ := setupAlarmService()
	ctx := context.Background()

	_, err := svc.ListAlarmEvents(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 50, events.lastLimit)

	_, err = svc.ListAlarmEvents(ctx, "room-1", 10000)
	require.NoError(t, err)
	assert.Equal(t, 500, events.lastLimit)

	_, err = svc.ListAlarmEvents(ctx, "room-1", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, events.lastLimit)
}

func TestAlarmPolicy(t *testing.T) {
	noon := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	inHours, muted := alarmPolicy(nil, noon)
	assert.True(t, inHours)
	assert.Empty(t, muted)

	configs := []models.AlertConfig{
		{ID: 1, HourMin: 20, HourMax: 6, Overrides: []models.ThresholdOverride{
			{Parameter: models.CO2, Enabled: false},
			{Parameter: models.PM25, Enabled: false},
		}},
		{ID: 2, HourMin: 8, HourMax: 14, Overrides: []models.ThresholdOverride{
			{Parameter: models.CO2, Enabled: true},
		}},
	}
	inHours, muted = alarmPolicy(configs, noon)
	assert.True(t, inHours)
	assert.False(t, muted[models.CO2], "enabled in another config")
	assert.True(t, muted[models.PM25])

	inHours, _ = alarmPolicy(configs, time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC))
	assert.False(t, inHours)
}
