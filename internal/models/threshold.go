package models

import (
	"fmt"
	"math"
)

// ThresholdSource where a resolved ThresholdDefinition came from
type ThresholdSource string

const (
	SourceNone         ThresholdSource = "none" // no-bounds sentinel
	SourceGlobal       ThresholdSource = "global"
	SourceRoomOverride ThresholdSource = "room_override"
)

// ThresholdDefinition resolved bounds of one parameter, in display units.
// The good band always comes from the global row; the warning band comes from the
// room override when one exists.
type ThresholdDefinition struct {
	Parameter  Parameter       `json:"parameter" db:"parameter"`
	MinGood    float64         `json:"min_good" db:"min_good"`
	MaxGood    float64         `json:"max_good" db:"max_good"`
	MinWarning float64         `json:"min_warning" db:"min_warning"`
	MaxWarning float64         `json:"max_warning" db:"max_warning"`
	Source     ThresholdSource `json:"source"`
}

// NoBounds the "no opinion" sentinel. Any finite value classifies as GOOD against it.
//
// Fail-open: a parameter without a global row and without an override is reported as
// fine, so a misconfigured parameter never raises an alarm.
func NoBounds(p Parameter) ThresholdDefinition {
	return ThresholdDefinition{Parameter: p, Source: SourceNone}
}

// HasBounds false for the sentinel and for the zero value
func (t ThresholdDefinition) HasBounds() bool {
	return t.Source == SourceGlobal || t.Source == SourceRoomOverride
}

// Validate checks min <= max for both bands. Gapped or disjoint bands are valid.
func (t ThresholdDefinition) Validate() error {
	if !t.HasBounds() {
		return nil
	}
	for _, v := range []float64{t.MinGood, t.MaxGood, t.MinWarning, t.MaxWarning} {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: %s has a NaN bound", ErrInvalidThreshold, t.Parameter)
		}
	}
	if t.MinGood > t.MaxGood {
		return fmt.Errorf("%w: %s good band [%g, %g] is inverted", ErrInvalidThreshold, t.Parameter, t.MinGood, t.MaxGood)
	}
	if t.MinWarning > t.MaxWarning {
		return fmt.Errorf("%w: %s warning band [%g, %g] is inverted", ErrInvalidThreshold, t.Parameter, t.MinWarning, t.MaxWarning)
	}
	return nil
}

// WarningCoversGood reports whether the warning band contains the good band
func (t ThresholdDefinition) WarningCoversGood() bool {
	return t.MinWarning <= t.MinGood && t.MaxGood <= t.MaxWarning
}
