package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"lodepa-air/internal/consumer"
	"lodepa-air/internal/models"
	"lodepa-air/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReadingQueries satisfied by *service.ReadingService
type ReadingQueries interface {
	LastReading(ctx context.Context, deviceID string) (*service.LastReading, error)
	Series(ctx context.Context, deviceID string, p models.Parameter, rangeKey string, from, to time.Time) (*service.Series, error)
}

// DeviceReporter satisfied by *service.ReportService
type DeviceReporter interface {
	DeviceReport(ctx context.Context, deviceID string, from, to time.Time) ([]byte, error)
}

// StatusReader satisfied by *consumer.StatusCache
type StatusReader interface {
	GetDeviceStatus(ctx context.Context, deviceID string) (*consumer.DeviceStatus, error)
}

// DeviceHandler per-device dashboard endpoints
type DeviceHandler struct {
	readings ReadingQueries
	reports  DeviceReporter
	statuses StatusReader
	logger   *zap.Logger
	location *time.Location
}

// NewDeviceHandler report day boundaries are taken in loc
func NewDeviceHandler(readings ReadingQueries, reports DeviceReporter, statuses StatusReader, loc *time.Location, logger *zap.Logger) *DeviceHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DeviceHandler{
		readings: readings,
		reports:  reports,
		statuses: statuses,
		logger:   logger,
		location: loc,
	}
}

// GetLastReading GET /api/v1/devices/{deviceId}/last
func (h *DeviceHandler) GetLastReading(w http.ResponseWriter, r *http.Request) {
	last, err := h.readings.LastReading(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(last))
}

// GetSeries GET /api/v1/devices/{deviceId}/series?parameter=&range=24h|1w|2w|1m[&from=&to=]
// from and to are RFC 3339 and must be given together.
func (h *DeviceHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("parameter") == "" {
		writeError(w, h.logger, r, badRequest("parameter is required"))
		return
	}
	p, err := models.ParseParameter(q.Get("parameter"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var from, to time.Time
	if q.Get("from") != "" || q.Get("to") != "" {
		if from, err = time.Parse(time.RFC3339, q.Get("from")); err != nil {
			writeError(w, h.logger, r, badRequest("from: %v", err))
			return
		}
		if to, err = time.Parse(time.RFC3339, q.Get("to")); err != nil {
			writeError(w, h.logger, r, badRequest("to: %v", err))
			return
		}
	}

	series, err := h.readings.Series(r.Context(), chi.URLParam(r, "deviceId"), p, q.Get("range"), from, to)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(series))
}

// GetReport GET /api/v1/devices/{deviceId}/report?from=YYYY-MM-DD&to=YYYY-MM-DD
// Without dates the last 7 days, today included, are exported.
func (h *DeviceHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	q := r.URL.Query()

	fromDay, toDay := q.Get("from"), q.Get("to")
	if fromDay == "" && toDay == "" {
		today := time.Now().In(h.location)
		toDay = today.Format("2006-01-02")
		fromDay = today.AddDate(0, 0, -6).Format("2006-01-02")
	}
	from, to, err := service.ParseReportWindow(fromDay, toDay, h.location)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	data, err := h.reports.DeviceReport(r.Context(), deviceID, from, to)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=air-report-%s-%s-%s.xlsx", deviceID, fromDay, toDay))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write report", zap.String("device_id", deviceID), zap.Error(err))
	}
}

// GetStatus GET /api/v1/devices/{deviceId}/status, the last sweep snapshot
func (h *DeviceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.statuses.GetDeviceStatus(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}
