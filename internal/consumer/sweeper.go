package consumer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/metrics"
	"lodepa-air/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DeviceSource monitored devices and their readings
type DeviceSource interface {
	ListMonitoredDevices(ctx context.Context) ([]models.MonitoredDevice, error)
	GetLastReading(ctx context.Context, deviceID string) (*models.Reading, error)
}

// BatchClassifier satisfied by *evaluator.Evaluator
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, roomID string, readings map[string]float64) evaluator.BatchResult
}

// AlarmProcessor turns one device's classification into alarm events
type AlarmProcessor interface {
	Process(ctx context.Context, device models.MonitoredDevice, result evaluator.BatchResult) error
}

// Sweeper periodically classifies the latest reading of every monitored device
type Sweeper struct {
	schedule   string
	devices    DeviceSource
	classifier BatchClassifier
	cache      *StatusCache
	alarms     AlarmProcessor
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewSweeper(
	schedule string,
	devices DeviceSource,
	classifier BatchClassifier,
	cache *StatusCache,
	alarms AlarmProcessor,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		schedule:   schedule,
		devices:    devices,
		classifier: classifier,
		cache:      cache,
		alarms:     alarms,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Start sweeps once, then on every schedule tick until ctx is done.
// A tick is skipped while the previous sweep is still running.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("Failed to sweep devices", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.logger.Info("Sweeper started", zap.String("schedule", s.schedule))

	if err := s.Sweep(ctx); err != nil {
		s.logger.Error("Failed to sweep devices on startup", zap.Error(err))
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("Sweeper stopped")
	return nil
}

// Sweep one pass over every device. Per-device failures are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) error {
	start := s.now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	devices, err := s.devices.ListMonitoredDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	s.logger.Debug("Sweeping devices", zap.Int("device_count", len(devices)))

	for _, d := range devices {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.sweepDevice(ctx, d); err != nil {
			s.logger.Warn("Failed to evaluate device",
				zap.String("device_id", d.DeviceID),
				zap.String("room_id", d.RoomID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Sweeper) sweepDevice(ctx context.Context, d models.MonitoredDevice) error {
	reading, err := s.devices.GetLastReading(ctx, d.DeviceID)
	if err != nil {
		return err
	}

	raw := make(map[string]float64, len(reading.Values))
	for p, v := range reading.Values {
		raw[string(p)] = v
	}
	result := s.classifier.ClassifyBatch(ctx, d.RoomID, raw)
	for key, ferr := range result.Failures {
		s.logger.Warn("Reading value rejected",
			zap.String("device_id", d.DeviceID),
			zap.String("parameter", key),
			zap.Error(ferr),
		)
	}

	if s.cache != nil {
		if err := s.cache.UpdateDeviceStatus(ctx, NewDeviceStatus(d.DeviceID, reading, result, s.now())); err != nil {
			s.logger.Warn("Failed to cache device status", zap.String("device_id", d.DeviceID), zap.Error(err))
		}
	}

	return s.alarms.Process(ctx, d, result)
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, zap.String("details", formatKV(keysAndValues)))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.String("details", formatKV(keysAndValues)))
}

func formatKV(keysAndValues []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return b.String()
}
