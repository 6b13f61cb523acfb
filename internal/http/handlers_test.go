package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lodepa-air/internal/consumer"
	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"
	"lodepa-air/internal/repository"
	"lodepa-air/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var co2Bounds = models.ThresholdDefinition{
	Parameter: models.CO2, MinGood: 400, MaxGood: 800, MinWarning: 400, MaxWarning: 1000,
	Source: models.SourceGlobal,
}

type fakeReadings struct {
	last      *service.LastReading
	series    *service.Series
	err       error
	gotParam  models.Parameter
	gotRange  string
	gotFrom   time.Time
	gotTo     time.Time
	gotDevice string
}

func (f *fakeReadings) LastReading(_ context.Context, deviceID string) (*service.LastReading, error) {
	f.gotDevice = deviceID
	return f.last, f.err
}

func (f *fakeReadings) Series(_ context.Context, deviceID string, p models.Parameter, rangeKey string, from, to time.Time) (*service.Series, error) {
	f.gotDevice, f.gotParam, f.gotRange, f.gotFrom, f.gotTo = deviceID, p, rangeKey, from, to
	return f.series, f.err
}

type fakeReporter struct {
	data     []byte
	err      error
	from, to time.Time
}

func (f *fakeReporter) DeviceReport(_ context.Context, _ string, from, to time.Time) ([]byte, error) {
	f.from, f.to = from, to
	return f.data, f.err
}

type fakeStatuses struct {
	status *consumer.DeviceStatus
}

func (f *fakeStatuses) GetDeviceStatus(_ context.Context, _ string) (*consumer.DeviceStatus, error) {
	if f.status == nil {
		return nil, consumer.ErrNotCached
	}
	return f.status, nil
}

type fakeThresholds struct {
	err   error
	saved []models.ThresholdDefinition
}

func (f *fakeThresholds) RoomThresholds(_ context.Context, _ string) (map[models.Parameter]models.ThresholdDefinition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[models.Parameter]models.ThresholdDefinition{models.CO2: co2Bounds}, nil
}

func (f *fakeThresholds) RoomThreshold(_ context.Context, _ string, p models.Parameter) (models.ThresholdDefinition, error) {
	if f.err != nil {
		return models.ThresholdDefinition{}, f.err
	}
	if p == models.CO2 {
		return co2Bounds, nil
	}
	return models.NoBounds(p), nil
}

func (f *fakeThresholds) SetGlobalThreshold(_ context.Context, def models.ThresholdDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	f.saved = append(f.saved, def)
	return f.err
}

// fakeResolver every room shares co2Bounds
type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, _ string, p models.Parameter) (models.ThresholdDefinition, error) {
	if p == models.CO2 {
		return co2Bounds, nil
	}
	return models.NoBounds(p), nil
}

func (fakeResolver) ResolveMany(context.Context, string) (map[models.Parameter]models.ThresholdDefinition, error) {
	return map[models.Parameter]models.ThresholdDefinition{models.CO2: co2Bounds}, nil
}

type fakeAlertConfigs struct {
	configs map[int64]models.AlertConfig
}

func (f *fakeAlertConfigs) ListAlertConfigs(_ context.Context, roomID string) ([]models.AlertConfig, error) {
	var out []models.AlertConfig
	for _, c := range f.configs {
		if roomID == "" || c.RoomID == roomID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAlertConfigs) GetAlertConfig(_ context.Context, id int64) (*models.AlertConfig, error) {
	c, ok := f.configs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeAlertConfigs) SaveAlertConfig(_ context.Context, cfg models.AlertConfig) (*models.AlertConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		cfg.ID = int64(len(f.configs) + 1)
	}
	f.configs[cfg.ID] = cfg
	return &cfg, nil
}

func (f *fakeAlertConfigs) DeleteAlertConfig(_ context.Context, id int64) error {
	if _, ok := f.configs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.configs, id)
	return nil
}

type fakeEvents struct {
	roomID string
	limit  int
}

func (f *fakeEvents) ListAlarmEvents(_ context.Context, roomID string, limit int) ([]models.AlarmEvent, error) {
	f.roomID, f.limit = roomID, limit
	return nil, nil
}

type testAPI struct {
	router     *Router
	readings   *fakeReadings
	reports    *fakeReporter
	statuses   *fakeStatuses
	thresholds *fakeThresholds
	configs    *fakeAlertConfigs
	events     *fakeEvents
}

func setupTestAPI() *testAPI {
	logger := zap.NewNop()
	api := &testAPI{
		router:     NewRouter(logger, nil),
		readings:   &fakeReadings{},
		reports:    &fakeReporter{},
		statuses:   &fakeStatuses{},
		thresholds: &fakeThresholds{},
		configs:    &fakeAlertConfigs{configs: map[int64]models.AlertConfig{}},
		events:     &fakeEvents{},
	}
	eval := evaluator.NewEvaluator(fakeResolver{}, 2, nil, logger)

	api.router.RegisterDeviceRoutes(NewDeviceHandler(api.readings, api.reports, api.statuses, time.UTC, logger))
	api.router.RegisterRoomRoutes(NewRoomHandler(api.thresholds, eval, logger))
	api.router.RegisterAlertConfigRoutes(NewAlertConfigHandler(api.configs, logger))
	api.router.RegisterAlarmEventRoutes(NewAlarmEventHandler(api.events, logger))
	return api
}

func (a *testAPI) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeResult[T any](t *testing.T, w *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var res Result[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

func TestHealth(t *testing.T) {
	router := NewRouter(zap.NewNop(), nil)
	router.RegisterHealthRoutes(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Contains(t, body.Checks["redis"], "refused")
}

func TestUnknownRoute(t *testing.T) {
	api := setupTestAPI()

	w := api.do(t, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ResultError, decodeResult[any](t, w).Code)
}

func TestGetLastReading(t *testing.T) {
	api := setupTestAPI()
	api.readings.last = &service.LastReading{ReadingID: 7}

	w := api.do(t, http.MethodGet, "/api/v1/devices/dev-1/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult[service.LastReading](t, w)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.Equal(t, int64(7), res.Result.ReadingID)
	assert.Equal(t, "dev-1", api.readings.gotDevice)

	api.readings.err = repository.ErrNotFound
	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-2/last", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.readings.err = errors.New("boom")
	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-2/last", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetSeries(t *testing.T) {
	api := setupTestAPI()
	api.readings.series = &service.Series{Parameter: models.PM25}

	w := api.do(t, http.MethodGet, "/api/v1/devices/dev-1/series?parameter=PM2.5&range=1w", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PM25, api.readings.gotParam)
	assert.Equal(t, "1w", api.readings.gotRange)
	assert.True(t, api.readings.gotFrom.IsZero())

	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/series?parameter=co2&from=2024-03-01T00:00:00Z&to=2024-03-02T00:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), api.readings.gotFrom)

	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/series", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/series?parameter=co2&from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/series?parameter=co2%21", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.readings.err = service.ErrNoData
	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/series?parameter=co2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReport(t *testing.T) {
	api := setupTestAPI()
	api.reports.data = []byte("PK-fake-xlsx")

	w := api.do(t, http.MethodGet, "/api/v1/devices/dev-1/report?from=2024-03-01&to=2024-03-07", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "air-report-dev-1-2024-03-01-2024-03-07.xlsx")
	assert.Equal(t, "PK-fake-xlsx", w.Body.String())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), api.reports.from)

	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/report?from=2024-03-07&to=2024-03-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	// last 7 days, today included
	assert.Equal(t, 7*24*time.Hour, api.reports.to.Add(time.Microsecond).Sub(api.reports.from))
}

func TestGetStatus(t *testing.T) {
	api := setupTestAPI()

	w := api.do(t, http.MethodGet, "/api/v1/devices/dev-1/status", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.statuses.status = &consumer.DeviceStatus{DeviceID: "dev-1", Overall: models.StatusWarning}
	w = api.do(t, http.MethodGet, "/api/v1/devices/dev-1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusWarning, decodeResult[consumer.DeviceStatus](t, w).Result.Overall)
}

func TestRoomThresholds(t *testing.T) {
	api := setupTestAPI()

	w := api.do(t, http.MethodGet, "/api/v1/rooms/room-1/thresholds", "")
	require.Equal(t, http.StatusOK, w.Code)
	table := decodeResult[map[models.Parameter]models.ThresholdDefinition](t, w).Result
	assert.Equal(t, co2Bounds, table[models.CO2])

	w = api.do(t, http.MethodGet, "/api/v1/rooms/room-1/thresholds/CO2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, co2Bounds, decodeResult[models.ThresholdDefinition](t, w).Result)

	w = api.do(t, http.MethodGet, "/api/v1/rooms/room-1/thresholds/radon", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SourceNone, decodeResult[models.ThresholdDefinition](t, w).Result.Source)

	api.thresholds.err = &evaluator.StorageError{Op: "resolve_many", RoomID: "room-1", Err: errors.New("timeout")}
	w = api.do(t, http.MethodGet, "/api/v1/rooms/room-1/thresholds", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClassifyReadings(t *testing.T) {
	api := setupTestAPI()

	body := `{"readings": {"co2": 850, "formaldehyde": "1000", "pm25": null, "humidity": "wet", "iaq": true, "bad key!": 1}}`
	w := api.do(t, http.MethodPost, "/api/v1/rooms/room-1/status", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res Result[struct {
		RoomID   string                                       `json:"room_id"`
		Overall  models.Status                                `json:"overall"`
		Statuses map[models.Parameter]service.ParameterStatus `json:"statuses"`
		Failures map[string]string                            `json:"failures"`
	}]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	out := res.Result
	assert.Equal(t, "room-1", out.RoomID)
	assert.Equal(t, models.StatusWarning, out.Overall)
	require.Len(t, out.Statuses, 2)
	assert.Equal(t, models.StatusWarning, out.Statuses[models.CO2].Status)
	assert.Equal(t, "#eab308", out.Statuses[models.CO2].Color)
	assert.InDelta(t, 0.85, out.Statuses[models.Formaldehyde].Value, 1e-9)
	assert.Equal(t, models.StatusGood, out.Statuses[models.Formaldehyde].Status)

	assert.Len(t, out.Failures, 4)
	for _, key := range []string{"pm25", "humidity", "iaq", "bad key!"} {
		assert.Contains(t, out.Failures, key)
	}

	w = api.do(t, http.MethodPost, "/api/v1/rooms/room-1/status", `{"readings": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/rooms/room-1/status", `{"readings": [1, 2]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutGlobalThreshold(t *testing.T) {
	api := setupTestAPI()

	w := api.do(t, http.MethodPut, "/api/v1/thresholds/pm25",
		`{"min_good": 0, "max_good": 15, "min_warning": 0, "max_warning": 35}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, api.thresholds.saved, 1)
	assert.Equal(t, models.PM25, api.thresholds.saved[0].Parameter)
	assert.Equal(t, 35.0, api.thresholds.saved[0].MaxWarning)

	w = api.do(t, http.MethodPut, "/api/v1/thresholds/pm25", `{"max_good": 15}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, "/api/v1/thresholds/pm25",
		`{"min_good": 20, "max_good": 15, "min_warning": 0, "max_warning": 35}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertConfigs(t *testing.T) {
	api := setupTestAPI()

	w := api.do(t, http.MethodGet, "/api/v1/alert-configs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeResult[[]models.AlertConfig](t, w).Result)

	w = api.do(t, http.MethodPut, "/api/v1/alert-configs",
		`{"room_id": "room-1", "hour_min": 8, "hour_max": 20, "overrides": [{"parameter": "co2", "max_warning": 900, "enabled": true}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decodeResult[models.AlertConfig](t, w).Result
	assert.Equal(t, int64(1), saved.ID)
	require.Len(t, saved.Overrides, 1)
	assert.Equal(t, 900.0, *saved.Overrides[0].MaxWarning)
	assert.Nil(t, saved.Overrides[0].MinWarning)

	w = api.do(t, http.MethodGet, "/api/v1/alert-configs?room_id=room-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResult[[]models.AlertConfig](t, w).Result, 1)

	w = api.do(t, http.MethodGet, "/api/v1/alert-configs/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPut, "/api/v1/alert-configs", `{"hour_min": 8}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodDelete, "/api/v1/alert-configs/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/api/v1/alert-configs/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/alert-configs/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAlarmEvents(t *testing.T) {
	api := setupTestAPI()

	w := api.do(t, http.MethodGet, "/api/v1/alarm-events?room_id=room-1&limit=20", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "room-1", api.events.roomID)
	assert.Equal(t, 20, api.events.limit)
	assert.Empty(t, decodeResult[[]models.AlarmEvent](t, w).Result)

	api.do(t, http.MethodGet, "/api/v1/alarm-events?limit=lots", "")
	assert.Equal(t, 0, api.events.limit)
}
