package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lodepa-air/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AlertConfigRepository alert_configs and their alert_thresholds overrides
type AlertConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAlertConfigRepository(db *sql.DB, logger *zap.Logger) *AlertConfigRepository {
	return &AlertConfigRepository{
		db:     db,
		logger: logger,
	}
}

const alertConfigSelect = `
	SELECT
		ac.id,
		ac.room_id,
		ac.user_id,
		ac.hour_min,
		ac.hour_max,
		ath.parameter,
		ath.min_warning,
		ath.max_warning,
		ath.enabled
	FROM alert_configs ac
	LEFT JOIN alert_thresholds ath ON ath.alert_config_id = ac.id
`

// ListAlertConfigs every configuration of roomID, or of all rooms when roomID is empty
func (r *AlertConfigRepository) ListAlertConfigs(ctx context.Context, roomID string) ([]models.AlertConfig, error) {
	query := alertConfigSelect + `
		WHERE ($1 = '' OR ac.room_id = $1)
		ORDER BY ac.id, ath.parameter
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert configs: %w", err)
	}
	defer rows.Close()

	return collectAlertConfigs(rows)
}

// GetAlertConfig ErrNotFound when id does not exist
func (r *AlertConfigRepository) GetAlertConfig(ctx context.Context, id int64) (*models.AlertConfig, error) {
	query := alertConfigSelect + `
		WHERE ac.id = $1
		ORDER BY ath.parameter
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert config: %w", err)
	}
	defer rows.Close()

	configs, err := collectAlertConfigs(rows)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("alert config %d: %w", id, ErrNotFound)
	}
	return &configs[0], nil
}

// UpsertAlertConfig creates the configuration when cfg.ID is 0, otherwise updates it.
// Its overrides replace the stored ones. Returns the configuration id.
func (r *AlertConfigRepository) UpsertAlertConfig(ctx context.Context, cfg *models.AlertConfig) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := cfg.ID
	if id == 0 {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO alert_configs (room_id, user_id, hour_min, hour_max)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, cfg.RoomID, cfg.UserID, cfg.HourMin, cfg.HourMax).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert alert config: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE alert_configs
			SET room_id = $2, user_id = $3, hour_min = $4, hour_max = $5
			WHERE id = $1
		`, id, cfg.RoomID, cfg.UserID, cfg.HourMin, cfg.HourMax)
		if err != nil {
			return 0, fmt.Errorf("failed to update alert config: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return 0, fmt.Errorf("alert config %d: %w", id, ErrNotFound)
		}
	}

	params := make([]string, 0, len(cfg.Overrides))
	for _, o := range cfg.Overrides {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO alert_thresholds (alert_config_id, parameter, min_warning, max_warning, enabled)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (alert_config_id, parameter) DO UPDATE SET
				min_warning = EXCLUDED.min_warning,
				max_warning = EXCLUDED.max_warning,
				enabled = EXCLUDED.enabled
		`, id, string(o.Parameter), nullFloat(o.MinWarning), nullFloat(o.MaxWarning), o.Enabled)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert override %s: %w", o.Parameter, err)
		}
		params = append(params, string(o.Parameter))
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM alert_thresholds
		WHERE alert_config_id = $1 AND NOT (parameter = ANY($2))
	`, id, pq.Array(params))
	if err != nil {
		return 0, fmt.Errorf("failed to prune overrides: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit alert config: %w", err)
	}

	r.logger.Info("Alert config saved",
		zap.Int64("id", id),
		zap.String("room_id", cfg.RoomID),
		zap.Int("overrides", len(cfg.Overrides)),
	)
	return id, nil
}

// DeleteAlertConfig removes the configuration and, by cascade, its overrides.
// Returns the room it belonged to.
func (r *AlertConfigRepository) DeleteAlertConfig(ctx context.Context, id int64) (string, error) {
	var roomID string
	err := r.db.QueryRowContext(ctx, `DELETE FROM alert_configs WHERE id = $1 RETURNING room_id`, id).Scan(&roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("alert config %d: %w", id, ErrNotFound)
		}
		return "", fmt.Errorf("failed to delete alert config: %w", err)
	}

	r.logger.Info("Alert config deleted", zap.Int64("id", id), zap.String("room_id", roomID))
	return roomID, nil
}

func collectAlertConfigs(rows *sql.Rows) ([]models.AlertConfig, error) {
	var out []models.AlertConfig
	for rows.Next() {
		var (
			cfg        models.AlertConfig
			param      sql.NullString
			minWarning sql.NullFloat64
			maxWarning sql.NullFloat64
			enabled    sql.NullBool
		)
		if err := rows.Scan(&cfg.ID, &cfg.RoomID, &cfg.UserID, &cfg.HourMin, &cfg.HourMax,
			&param, &minWarning, &maxWarning, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan alert config: %w", err)
		}

		if len(out) == 0 || out[len(out)-1].ID != cfg.ID {
			out = append(out, cfg)
		}
		if !param.Valid {
			continue
		}
		last := &out[len(out)-1]
		last.Overrides = append(last.Overrides, models.ThresholdOverride{
			Parameter:  models.Parameter(param.String),
			MinWarning: floatPtr(minWarning),
			MaxWarning: floatPtr(maxWarning),
			Enabled:    enabled.Bool,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert configs: %w", err)
	}
	return out, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
