package service

import (
	"context"
	"fmt"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// GlobalThresholdWriter satisfied by *repository.ThresholdRepository
type GlobalThresholdWriter interface {
	UpsertGlobalThreshold(ctx context.Context, def models.ThresholdDefinition) error
}

// ThresholdService read access to resolved thresholds and write access to the global defaults
type ThresholdService struct {
	resolver    evaluator.Resolver
	writer      GlobalThresholdWriter
	invalidator ThresholdInvalidator
	logger      *zap.Logger
}

func NewThresholdService(resolver evaluator.Resolver, writer GlobalThresholdWriter, invalidator ThresholdInvalidator, logger *zap.Logger) *ThresholdService {
	return &ThresholdService{
		resolver:    resolver,
		writer:      writer,
		invalidator: invalidator,
		logger:      logger,
	}
}

// RoomThresholds bounds of every catalog parameter for the room, sentinel included
func (s *ThresholdService) RoomThresholds(ctx context.Context, roomID string) (map[models.Parameter]models.ThresholdDefinition, error) {
	table, err := s.resolver.ResolveMany(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Parameter]models.ThresholdDefinition, len(table))
	for p, def := range table {
		out[p] = def
	}
	for _, p := range models.Catalog() {
		out[p] = evaluator.BoundsFor(table, p)
	}
	return out, nil
}

func (s *ThresholdService) RoomThreshold(ctx context.Context, roomID string, p models.Parameter) (models.ThresholdDefinition, error) {
	return s.resolver.Resolve(ctx, roomID, p)
}

// SetGlobalThreshold replaces the global default of def.Parameter. Every room may
// inherit it, so the whole threshold cache is dropped.
func (s *ThresholdService) SetGlobalThreshold(ctx context.Context, def models.ThresholdDefinition) error {
	def.Source = models.SourceGlobal
	if !def.Parameter.InCatalog() {
		return fmt.Errorf("%w: %s", models.ErrUnknownParameter, def.Parameter)
	}
	if err := s.writer.UpsertGlobalThreshold(ctx, def); err != nil {
		return err
	}
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateAll(ctx); err != nil {
			s.logger.Warn("Failed to invalidate threshold cache", zap.Error(err))
		}
	}
	return nil
}
