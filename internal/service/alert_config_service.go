package service

import (
	"context"
	"fmt"

	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// AlertConfigStore satisfied by *repository.AlertConfigRepository
type AlertConfigStore interface {
	AlertConfigLister
	GetAlertConfig(ctx context.Context, id int64) (*models.AlertConfig, error)
	UpsertAlertConfig(ctx context.Context, cfg *models.AlertConfig) (int64, error)
	DeleteAlertConfig(ctx context.Context, id int64) (string, error)
}

// ThresholdInvalidator satisfied by *evaluator.CachedResolver
type ThresholdInvalidator interface {
	Invalidate(ctx context.Context, roomID string) error
	InvalidateAll(ctx context.Context) error
}

// AlertConfigService room alert configurations. Every write drops the cached
// thresholds of the rooms it touches.
type AlertConfigService struct {
	store       AlertConfigStore
	invalidator ThresholdInvalidator
	logger      *zap.Logger
}

// NewAlertConfigService invalidator may be nil when thresholds are not cached
func NewAlertConfigService(store AlertConfigStore, invalidator ThresholdInvalidator, logger *zap.Logger) *AlertConfigService {
	return &AlertConfigService{
		store:       store,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (s *AlertConfigService) ListAlertConfigs(ctx context.Context, roomID string) ([]models.AlertConfig, error) {
	return s.store.ListAlertConfigs(ctx, roomID)
}

func (s *AlertConfigService) GetAlertConfig(ctx context.Context, id int64) (*models.AlertConfig, error) {
	return s.store.GetAlertConfig(ctx, id)
}

// SaveAlertConfig creates (ID 0) or updates a configuration and returns the stored version.
// Override keys are canonicalized first.
func (s *AlertConfigService) SaveAlertConfig(ctx context.Context, cfg models.AlertConfig) (*models.AlertConfig, error) {
	for i, o := range cfg.Overrides {
		p, err := models.ParseParameter(string(o.Parameter))
		if err != nil {
			return nil, err
		}
		cfg.Overrides[i].Parameter = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// moving a configuration to another room changes the old room's thresholds too
	var previousRoom string
	if cfg.ID != 0 {
		prev, err := s.store.GetAlertConfig(ctx, cfg.ID)
		if err != nil {
			return nil, err
		}
		previousRoom = prev.RoomID
	}

	id, err := s.store.UpsertAlertConfig(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to save alert config: %w", err)
	}

	s.invalidate(ctx, cfg.RoomID)
	if previousRoom != "" && previousRoom != cfg.RoomID {
		s.invalidate(ctx, previousRoom)
	}

	return s.store.GetAlertConfig(ctx, id)
}

func (s *AlertConfigService) DeleteAlertConfig(ctx context.Context, id int64) error {
	roomID, err := s.store.DeleteAlertConfig(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, roomID)
	return nil
}

// invalidate a failure leaves stale thresholds until the cache TTL expires
func (s *AlertConfigService) invalidate(ctx context.Context, roomID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, roomID); err != nil {
		s.logger.Warn("Failed to invalidate room thresholds",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
	}
}
