package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lodepa-air/internal/config"
	"lodepa-air/internal/consumer"
	"lodepa-air/internal/evaluator"
	httpapi "lodepa-air/internal/http"
	"lodepa-air/internal/metrics"
	"lodepa-air/internal/notify"
	"lodepa-air/internal/repository"
	"lodepa-air/internal/service"
	"lodepa-air/internal/store"
	"lodepa-air/pkg/database"
	"lodepa-air/pkg/mqtt"
	redisclient "lodepa-air/pkg/redis"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// AirService wires storage, evaluation, alarming and the HTTP API together
type AirService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	sweeper *consumer.Sweeper
	server  *service.Server
}

// NewAirService connects to PostgreSQL and Redis (both required) and to the MQTT
// broker when enabled. An unreachable broker only disables the MQTT notifier.
func NewAirService(cfg *config.Config, logger *zap.Logger) (*AirService, error) {
	// 1. storage
	db, err := database.Open(context.Background(), &cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient, err := redisclient.Connect(context.Background(), &cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			logger.Warn("MQTT enabled but connection failed, alarms will not be published over MQTT",
				zap.String("broker", cfg.MQTT.Broker),
				zap.Error(err),
			)
			mqttClient = nil
		}
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// 2. repositories
	thresholdRepo := repository.NewThresholdRepository(db, logger)
	alertConfigRepo := repository.NewAlertConfigRepository(db, logger)
	readingRepo := repository.NewReadingRepository(db, logger)
	alarmEventsRepo := repository.NewAlarmEventsRepository(db, logger)

	// 3. evaluation
	resolver := evaluator.NewCachedResolver(
		evaluator.NewStoreResolver(thresholdRepo, m, logger),
		store.NewRedisKV(redisClient),
		cfg.Cache.ThresholdPrefix,
		cfg.Cache.ThresholdTTL,
		m,
		logger,
	)
	eval := evaluator.NewEvaluator(resolver, cfg.Evaluation.Concurrency, m, logger)

	// 4. notifications
	notifiers := []notify.Notifier{
		notify.NewStreamNotifier(redisClient, cfg.Alarm.Stream, cfg.Alarm.StreamMaxLen),
	}
	if mqttClient != nil {
		notifiers = append(notifiers, notify.NewMQTTNotifier(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS))
	}
	if cfg.Alarm.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Alarm.WebhookURL, cfg.Alarm.WebhookTimeout, cfg.Alarm.WebhookRetries, logger))
	}
	notifier := notify.NewMulti(m, logger, notifiers...)

	// 5. services
	alarmEvents := service.NewAlarmEventService(alarmEventsRepo, alertConfigRepo, notifier, m, logger)
	alertConfigs := service.NewAlertConfigService(alertConfigRepo, resolver, logger)
	thresholds := service.NewThresholdService(resolver, thresholdRepo, resolver, logger)
	readings := service.NewReadingService(readingRepo, eval, logger)
	reports := service.NewReportService(readingRepo, logger)

	statusCache := consumer.NewStatusCache(redisClient, cfg.Cache.StatusPrefix, cfg.Cache.StatusTTL, logger)
	sweeper := consumer.NewSweeper(cfg.Evaluation.Schedule, readingRepo, eval, statusCache, alarmEvents, m, logger)

	// 6. HTTP
	router := httpapi.NewRouter(logger, m)
	router.RegisterHealthRoutes(map[string]httpapi.HealthCheck{
		"database": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"mqtt": func(context.Context) error {
			if !cfg.MQTT.Enabled {
				return nil
			}
			if mqttClient == nil {
				return mqtt.ErrNotConnected
			}
			return mqttClient.Check()
		},
	})
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(readings, reports, statusCache, time.Local, logger))
	router.RegisterRoomRoutes(httpapi.NewRoomHandler(thresholds, eval, logger))
	router.RegisterAlertConfigRoutes(httpapi.NewAlertConfigHandler(alertConfigs, logger))
	router.RegisterAlarmEventRoutes(httpapi.NewAlarmEventHandler(alarmEvents, logger))

	return &AirService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		logger:      logger,
		sweeper:     sweeper,
		server:      service.NewServer(cfg.HTTP.Addr, router, logger),
	}, nil
}

// Start runs the HTTP server and the sweeper until ctx is done or one of them fails
func (s *AirService) Start(ctx context.Context) error {
	s.logger.Info("Starting air service",
		zap.String("addr", s.config.HTTP.Addr),
		zap.String("schedule", s.config.Evaluation.Schedule),
	)

	errCh := make(chan error, 2)
	go func() {
		if err := s.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := s.sweeper.Start(ctx); err != nil {
			errCh <- fmt.Errorf("failed to start sweeper: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop shuts the HTTP server down and closes every connection
func (s *AirService) Stop() error {
	s.logger.Info("Stopping air service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Stop(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}
	return nil
}
