package evaluator

import (
	"fmt"

	"lodepa-air/internal/models"
)

// Classify places a normalized value against resolved bounds.
// Good is checked before warning and both bands are inclusive, so with overlapping
// bands good wins and a value in the gap between them is DANGER. The no-bounds
// sentinel classifies everything as GOOD.
func Classify(value float64, bounds models.ThresholdDefinition) (models.Status, error) {
	if !finite(value) {
		return models.StatusGood, fmt.Errorf("%w: %v", models.ErrInvalidReading, value)
	}
	if !bounds.HasBounds() {
		return models.StatusGood, nil
	}

	switch {
	case value >= bounds.MinGood && value <= bounds.MaxGood:
		return models.StatusGood, nil
	case value >= bounds.MinWarning && value <= bounds.MaxWarning:
		return models.StatusWarning, nil
	default:
		return models.StatusDanger, nil
	}
}
