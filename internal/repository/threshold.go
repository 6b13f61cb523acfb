package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// ThresholdRepository global thresholds and room overrides.
// Override rows are joined with the global row, so the good band always comes
// from thresholds and each warning bound falls back to the global one.
type ThresholdRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewThresholdRepository(db *sql.DB, logger *zap.Logger) *ThresholdRepository {
	return &ThresholdRepository{
		db:     db,
		logger: logger,
	}
}

const globalColumns = `t.parameter, t.min_good, t.max_good, t.min_warning, t.max_warning`

// The first alert configuration of the room (lowest id) wins when several
// configure the same parameter; RoomThreshold and RoomThresholds agree on it.
const joinedColumns = `
	t.parameter,
	t.min_good,
	t.max_good,
	COALESCE(ath.min_warning, t.min_warning),
	COALESCE(ath.max_warning, t.max_warning)`

// GlobalThreshold nil when the parameter has no global row
func (r *ThresholdRepository) GlobalThreshold(ctx context.Context, p models.Parameter) (*models.ThresholdDefinition, error) {
	query := `SELECT ` + globalColumns + ` FROM thresholds t WHERE t.parameter = $1`

	def, err := scanThreshold(r.db.QueryRowContext(ctx, query, string(p)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query global threshold: %w", err)
	}
	def.Source = models.SourceGlobal
	return def, nil
}

// RoomThreshold nil when no alert configuration of the room covers p
func (r *ThresholdRepository) RoomThreshold(ctx context.Context, roomID string, p models.Parameter) (*models.ThresholdDefinition, error) {
	query := `
		SELECT ` + joinedColumns + `
		FROM alert_thresholds ath
		JOIN thresholds t ON ath.parameter = t.parameter
		JOIN alert_configs ac ON ath.alert_config_id = ac.id
		WHERE ac.room_id = $1 AND ath.parameter = $2
		ORDER BY ac.id
		LIMIT 1
	`

	def, err := scanThreshold(r.db.QueryRowContext(ctx, query, roomID, string(p)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query room threshold: %w", err)
	}
	def.Source = models.SourceRoomOverride
	return def, nil
}

// RoomThresholds one joined row per parameter configured for the room
func (r *ThresholdRepository) RoomThresholds(ctx context.Context, roomID string) ([]models.ThresholdDefinition, error) {
	query := `
		SELECT DISTINCT ON (t.parameter) ` + joinedColumns + `
		FROM alert_thresholds ath
		JOIN thresholds t ON ath.parameter = t.parameter
		JOIN alert_configs ac ON ath.alert_config_id = ac.id
		WHERE ac.room_id = $1
		ORDER BY t.parameter, ac.id
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query room thresholds: %w", err)
	}
	defer rows.Close()

	return collectThresholds(rows, models.SourceRoomOverride)
}

// GlobalThresholds the whole global table
func (r *ThresholdRepository) GlobalThresholds(ctx context.Context) ([]models.ThresholdDefinition, error) {
	query := `SELECT ` + globalColumns + ` FROM thresholds t ORDER BY t.parameter`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query global thresholds: %w", err)
	}
	defer rows.Close()

	return collectThresholds(rows, models.SourceGlobal)
}

// UpsertGlobalThreshold writes a global default row
func (r *ThresholdRepository) UpsertGlobalThreshold(ctx context.Context, def models.ThresholdDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO thresholds (parameter, min_good, max_good, min_warning, max_warning)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (parameter) DO UPDATE SET
			min_good = EXCLUDED.min_good,
			max_good = EXCLUDED.max_good,
			min_warning = EXCLUDED.min_warning,
			max_warning = EXCLUDED.max_warning
	`
	_, err := r.db.ExecContext(ctx, query,
		string(def.Parameter), def.MinGood, def.MaxGood, def.MinWarning, def.MaxWarning)
	if err != nil {
		return fmt.Errorf("failed to upsert global threshold: %w", err)
	}

	r.logger.Info("Global threshold updated", zap.String("parameter", def.Parameter.String()))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThreshold(row rowScanner) (*models.ThresholdDefinition, error) {
	var (
		def   models.ThresholdDefinition
		param string
	)
	if err := row.Scan(&param, &def.MinGood, &def.MaxGood, &def.MinWarning, &def.MaxWarning); err != nil {
		return nil, err
	}
	def.Parameter = models.Parameter(param)
	return &def, nil
}

func collectThresholds(rows *sql.Rows, source models.ThresholdSource) ([]models.ThresholdDefinition, error) {
	var out []models.ThresholdDefinition
	for rows.Next() {
		def, err := scanThreshold(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		def.Source = source
		out = append(out, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate thresholds: %w", err)
	}
	return out, nil
}
