package evaluator

import (
	"context"

	"lodepa-air/internal/metrics"
	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// ThresholdStore reads threshold rows. A nil row (no error) means absent.
type ThresholdStore interface {
	// GlobalThreshold the global default row of p
	GlobalThreshold(ctx context.Context, p models.Parameter) (*models.ThresholdDefinition, error)
	// RoomThreshold the room override joined with the global row of p
	RoomThreshold(ctx context.Context, roomID string, p models.Parameter) (*models.ThresholdDefinition, error)
	// RoomThresholds the joined rows of every parameter configured for the room
	RoomThresholds(ctx context.Context, roomID string) ([]models.ThresholdDefinition, error)
	// GlobalThresholds every global default row
	GlobalThresholds(ctx context.Context) ([]models.ThresholdDefinition, error)
}

// Resolver resolves the bounds that apply to a room.
// For every parameter p, BoundsFor(ResolveMany(room), p) equals Resolve(room, p).
type Resolver interface {
	Resolve(ctx context.Context, roomID string, p models.Parameter) (models.ThresholdDefinition, error)
	ResolveMany(ctx context.Context, roomID string) (map[models.Parameter]models.ThresholdDefinition, error)
}

// BoundsFor reads p from a ResolveMany result; parameters absent from it have no bounds
func BoundsFor(bounds map[models.Parameter]models.ThresholdDefinition, p models.Parameter) models.ThresholdDefinition {
	if def, ok := bounds[p]; ok {
		return def
	}
	return models.NoBounds(p)
}

// StoreResolver resolves straight from a ThresholdStore: room override, then global
// default, then the no-bounds sentinel.
type StoreResolver struct {
	store   ThresholdStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewStoreResolver m may be nil
func NewStoreResolver(store ThresholdStore, m *metrics.Metrics, logger *zap.Logger) *StoreResolver {
	return &StoreResolver{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

func (r *StoreResolver) Resolve(ctx context.Context, roomID string, p models.Parameter) (models.ThresholdDefinition, error) {
	row, err := r.store.RoomThreshold(ctx, roomID, p)
	if err != nil {
		r.metrics.ResolveFailed("room_threshold")
		return models.ThresholdDefinition{}, &StorageError{Op: "room_threshold", RoomID: roomID, Parameter: p, Err: err}
	}
	if row != nil {
		return r.accept(roomID, *row, p, models.SourceRoomOverride), nil
	}

	row, err = r.store.GlobalThreshold(ctx, p)
	if err != nil {
		r.metrics.ResolveFailed("global_threshold")
		return models.ThresholdDefinition{}, &StorageError{Op: "global_threshold", RoomID: roomID, Parameter: p, Err: err}
	}
	if row != nil {
		return r.accept(roomID, *row, p, models.SourceGlobal), nil
	}

	r.logger.Debug("No threshold configured, using no bounds",
		zap.String("room_id", roomID),
		zap.String("parameter", p.String()),
	)
	return models.NoBounds(p), nil
}

func (r *StoreResolver) ResolveMany(ctx context.Context, roomID string) (map[models.Parameter]models.ThresholdDefinition, error) {
	rows, err := r.store.RoomThresholds(ctx, roomID)
	if err != nil {
		r.metrics.ResolveFailed("room_thresholds")
		return nil, &StorageError{Op: "room_thresholds", RoomID: roomID, Err: err}
	}

	// The global table is read even when the room has overrides: parameters the
	// room does not override must still resolve like Resolve does.
	globals, err := r.store.GlobalThresholds(ctx)
	if err != nil {
		r.metrics.ResolveFailed("global_thresholds")
		return nil, &StorageError{Op: "global_thresholds", RoomID: roomID, Err: err}
	}

	out := make(map[models.Parameter]models.ThresholdDefinition, len(globals))
	for _, row := range globals {
		out[row.Parameter] = r.accept(roomID, row, row.Parameter, models.SourceGlobal)
	}
	for _, row := range rows {
		out[row.Parameter] = r.accept(roomID, row, row.Parameter, models.SourceRoomOverride)
	}
	return out, nil
}

// accept stamps the source and logs inverted bands. The row is used regardless.
func (r *StoreResolver) accept(roomID string, row models.ThresholdDefinition, p models.Parameter, source models.ThresholdSource) models.ThresholdDefinition {
	row.Parameter = p
	row.Source = source
	if err := row.Validate(); err != nil {
		r.logger.Warn("Threshold definition failed validation",
			zap.String("room_id", roomID),
			zap.String("parameter", p.String()),
			zap.String("source", string(source)),
			zap.Error(err),
		)
	}
	return row
}
