package evaluator

import (
	"fmt"
	"math"

	"lodepa-air/internal/models"
)

// conversion raw (stored) unit to display unit: raw / divisor * factor
type conversion struct {
	divisor float64
	factor  float64
}

// Stored in ppb, displayed in ppm. Formaldehyde carries a sensor correction.
var conversions = map[models.Parameter]conversion{
	models.Formaldehyde: {divisor: 1000, factor: 0.85},
	models.VOCs:         {divisor: 1000, factor: 1},
	models.CO:           {divisor: 1000, factor: 1},
	models.O3:           {divisor: 1000, factor: 1},
	models.NO2:          {divisor: 1000, factor: 1},
}

const (
	convertedDecimals = 3
	defaultDecimals   = 1
)

// Normalize converts a raw stored value into the display unit thresholds are defined in.
// Parameters without a conversion pass through unchanged.
func Normalize(p models.Parameter, raw float64) (float64, error) {
	if !finite(raw) {
		return 0, fmt.Errorf("%w: %s=%v", models.ErrInvalidReading, p, raw)
	}
	c, ok := conversions[p]
	if !ok {
		return raw, nil
	}
	return raw / c.divisor * c.factor, nil
}

// Converted reports whether p has a unit conversion
func Converted(p models.Parameter) bool {
	_, ok := conversions[p]
	return ok
}

// DisplayDecimals 3 for converted parameters, 1 otherwise
func DisplayDecimals(p models.Parameter) int {
	if Converted(p) {
		return convertedDecimals
	}
	return defaultDecimals
}

// RoundForDisplay rounds a normalized value. Never classify the result.
func RoundForDisplay(p models.Parameter, v float64) float64 {
	return roundTo(v, DisplayDecimals(p))
}

func roundTo(v float64, decimals int) float64 {
	if !finite(v) {
		return v
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
