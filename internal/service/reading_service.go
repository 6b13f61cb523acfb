package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// ErrNoData the requested window holds no readings
var ErrNoData = errors.New("no data in range")

// ReadingStore satisfied by *repository.ReadingRepository
type ReadingStore interface {
	GetDevice(ctx context.Context, deviceID string) (*models.MonitoredDevice, error)
	GetLastReading(ctx context.Context, deviceID string) (*models.Reading, error)
	GetReadings(ctx context.Context, deviceID string, from, to time.Time) ([]models.Reading, error)
	GetSeries(ctx context.Context, deviceID string, p models.Parameter, from, to time.Time) ([]models.SeriesPoint, error)
}

// Chart windows
var seriesRanges = map[string]func(now time.Time) time.Time{
	"24h": func(now time.Time) time.Time { return now.Add(-24 * time.Hour) },
	"1w":  func(now time.Time) time.Time { return now.AddDate(0, 0, -7) },
	"2w":  func(now time.Time) time.Time { return now.AddDate(0, 0, -14) },
	"1m":  func(now time.Time) time.Time { return now.AddDate(0, -1, 0) },
}

const defaultSeriesRange = "24h"

// ErrInvalidRange unknown range key or inverted window
var ErrInvalidRange = errors.New("invalid range")

// ParameterStatus one classified value of a reading, with presentation data
type ParameterStatus struct {
	evaluator.Evaluation
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Color string `json:"color"`
}

// NewParameterStatus adds catalog name, unit and status color to ev
func NewParameterStatus(ev evaluator.Evaluation) ParameterStatus {
	ps := ParameterStatus{Evaluation: ev, Color: ev.Status.Color()}
	if info, err := ev.Parameter.Info(); err == nil {
		ps.Name = info.Name
		ps.Unit = info.Unit
	} else {
		ps.Name = string(ev.Parameter)
	}
	return ps
}

// LastReading latest reading of a device, every value classified
type LastReading struct {
	Device    models.MonitoredDevice `json:"device"`
	ReadingID int64                  `json:"reading_id"`
	Timestamp time.Time              `json:"timestamp"`
	Values    []ParameterStatus      `json:"values"`
	Failures  map[string]string      `json:"failures,omitempty"`
}

// SeriesStats over normalized values, rounded for display
type SeriesStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Series chart data of one parameter
type Series struct {
	DeviceID   string                     `json:"device_id"`
	Parameter  models.Parameter           `json:"parameter"`
	Name       string                     `json:"name"`
	Unit       string                     `json:"unit"`
	Range      string                     `json:"range,omitempty"`
	From       time.Time                  `json:"from"`
	To         time.Time                  `json:"to"`
	Points     []models.SeriesPoint       `json:"points"`
	Stats      SeriesStats                `json:"stats"`
	Thresholds models.ThresholdDefinition `json:"thresholds"`
}

// ReadingService read side of the dashboard: last reading and chart series
type ReadingService struct {
	readings  ReadingStore
	evaluator *evaluator.Evaluator
	logger    *zap.Logger
	now       func() time.Time
}

func NewReadingService(readings ReadingStore, eval *evaluator.Evaluator, logger *zap.Logger) *ReadingService {
	return &ReadingService{
		readings:  readings,
		evaluator: eval,
		logger:    logger,
		now:       time.Now,
	}
}

// LastReading classifies the device's latest reading against its room's thresholds.
// Values are listed in catalog order.
func (s *ReadingService) LastReading(ctx context.Context, deviceID string) (*LastReading, error) {
	device, err := s.readings.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	reading, err := s.readings.GetLastReading(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]float64, len(reading.Values))
	for p, v := range reading.Values {
		raw[string(p)] = v
	}
	result := s.evaluator.ClassifyBatch(ctx, device.RoomID, raw)

	out := &LastReading{
		Device:    *device,
		ReadingID: reading.ID,
		Timestamp: reading.Timestamp,
	}
	for _, p := range models.Catalog() {
		ev, ok := result.Statuses[p]
		if !ok {
			continue
		}
		out.Values = append(out.Values, NewParameterStatus(ev))
	}
	if len(result.Failures) > 0 {
		out.Failures = make(map[string]string, len(result.Failures))
		for k, ferr := range result.Failures {
			out.Failures[k] = ferr.Error()
		}
	}
	return out, nil
}

// Series normalized chart points of one parameter. rangeKey selects a window ending
// now (24h, 1w, 2w, 1m; empty means 24h); non-zero from and to override it.
func (s *ReadingService) Series(ctx context.Context, deviceID string, p models.Parameter, rangeKey string, from, to time.Time) (*Series, error) {
	info, err := p.Info()
	if err != nil {
		return nil, err
	}

	if from.IsZero() || to.IsZero() {
		if rangeKey == "" {
			rangeKey = defaultSeriesRange
		}
		start, ok := seriesRanges[rangeKey]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, rangeKey)
		}
		to = s.now()
		from = start(to)
	} else {
		rangeKey = ""
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}

	device, err := s.readings.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	points, err := s.readings.GetSeries(ctx, deviceID, p, from, to)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s of device %s: %w", p, deviceID, ErrNoData)
	}

	thresholds, err := s.evaluator.Resolver().Resolve(ctx, device.RoomID, p)
	if err != nil {
		// chart still renders without bands
		s.logger.Warn("Failed to resolve series thresholds",
			zap.String("room_id", device.RoomID),
			zap.String("parameter", p.String()),
			zap.Error(err),
		)
		thresholds = models.NoBounds(p)
	}

	out := &Series{
		DeviceID:   deviceID,
		Parameter:  p,
		Name:       info.Name,
		Unit:       info.Unit,
		Range:      rangeKey,
		From:       from,
		To:         to,
		Points:     make([]models.SeriesPoint, 0, len(points)),
		Thresholds: thresholds,
	}

	var (
		sum      float64
		min, max = math.Inf(1), math.Inf(-1)
	)
	for _, pt := range points {
		v, err := evaluator.Normalize(p, pt.Value)
		if err != nil {
			continue
		}
		sum += v
		min = math.Min(min, v)
		max = math.Max(max, v)
		out.Points = append(out.Points, models.SeriesPoint{Timestamp: pt.Timestamp, Value: evaluator.RoundForDisplay(p, v)})
	}
	if len(out.Points) == 0 {
		return nil, fmt.Errorf("%s of device %s: %w", p, deviceID, ErrNoData)
	}
	out.Stats = SeriesStats{
		Min:  evaluator.RoundForDisplay(p, min),
		Max:  evaluator.RoundForDisplay(p, max),
		Mean: evaluator.RoundForDisplay(p, sum/float64(len(out.Points))),
	}
	return out, nil
}
