package models

import (
	"fmt"
	"time"
)

// AlertConfig per-room alert configuration (alert_configs + alert_thresholds)
type AlertConfig struct {
	ID        int64               `json:"id" db:"id"`
	RoomID    string              `json:"room_id" db:"room_id"`
	UserID    string              `json:"user_id" db:"user_id"`
	HourMin   int                 `json:"hour_min" db:"hour_min"` // 0-23
	HourMax   int                 `json:"hour_max" db:"hour_max"` // 0-23
	Overrides []ThresholdOverride `json:"overrides"`
}

// ThresholdOverride room-level warning band; a nil bound inherits the global one
type ThresholdOverride struct {
	Parameter  Parameter `json:"parameter" db:"parameter"`
	MinWarning *float64  `json:"min_warning,omitempty" db:"min_warning"`
	MaxWarning *float64  `json:"max_warning,omitempty" db:"max_warning"`
	Enabled    bool      `json:"enabled" db:"enabled"`
}

// ActiveAt reports whether t falls inside [HourMin, HourMax].
// HourMin == HourMax means all day; HourMin > HourMax wraps past midnight (22 -> 6).
func (c AlertConfig) ActiveAt(t time.Time) bool {
	h := t.Hour()
	switch {
	case c.HourMin == c.HourMax:
		return true
	case c.HourMin < c.HourMax:
		return h >= c.HourMin && h <= c.HourMax
	default:
		return h >= c.HourMin || h <= c.HourMax
	}
}

// Validate checks the fields a caller can get wrong. Overrides must name catalog
// parameters and may not invert their warning band.
func (c AlertConfig) Validate() error {
	if c.RoomID == "" {
		return fmt.Errorf("%w: room_id is required", ErrInvalidAlertConfig)
	}
	if c.HourMin < 0 || c.HourMin > 23 || c.HourMax < 0 || c.HourMax > 23 {
		return fmt.Errorf("%w: hours must be within 0-23", ErrInvalidAlertConfig)
	}
	seen := make(map[Parameter]bool, len(c.Overrides))
	for _, o := range c.Overrides {
		if !o.Parameter.InCatalog() {
			return fmt.Errorf("%w: %s", ErrUnknownParameter, o.Parameter)
		}
		if seen[o.Parameter] {
			return fmt.Errorf("%w: %s configured twice", ErrInvalidAlertConfig, o.Parameter)
		}
		seen[o.Parameter] = true
		if o.MinWarning != nil && o.MaxWarning != nil && *o.MinWarning > *o.MaxWarning {
			return fmt.Errorf("%w: %s warning band [%g, %g] is inverted", ErrInvalidThreshold, o.Parameter, *o.MinWarning, *o.MaxWarning)
		}
	}
	return nil
}
