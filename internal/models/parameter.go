package models

import (
	"fmt"
	"strings"
)

// Parameter canonical (lower snake_case) name of a monitored quantity
type Parameter string

const (
	Temperature          Parameter = "temperature"
	Humidity             Parameter = "humidity"
	CO2                  Parameter = "co2"
	Formaldehyde         Parameter = "formaldehyde"
	VOCs                 Parameter = "vocs"
	PM1                  Parameter = "pm1"
	PM25                 Parameter = "pm25"
	PM4                  Parameter = "pm4"
	PM10                 Parameter = "pm10"
	CO                   Parameter = "co"
	O3                   Parameter = "o3"
	NO2                  Parameter = "no2"
	IAQ                  Parameter = "iaq"
	ThermalIndicator     Parameter = "thermal_indicator"
	VentilationIndicator Parameter = "ventilation_indicator"
	COVID19              Parameter = "covid19"
)

// ParameterInfo presentation metadata of a catalog parameter
type ParameterInfo struct {
	Name string `json:"name"`
	Unit string `json:"unit"` // display unit, after normalization
}

// catalogOrder is also the column order of readings and reports
var catalogOrder = []Parameter{
	Temperature, Humidity, CO2, Formaldehyde, VOCs,
	PM1, PM25, PM4, PM10,
	CO, O3, NO2,
	IAQ, ThermalIndicator, VentilationIndicator, COVID19,
}

var catalog = map[Parameter]ParameterInfo{
	Temperature:          {Name: "Temperatura", Unit: "°C"},
	Humidity:             {Name: "Humedad", Unit: "%"},
	CO2:                  {Name: "CO₂", Unit: "ppm"},
	Formaldehyde:         {Name: "Formaldehído", Unit: "ppm"},
	VOCs:                 {Name: "TVOC", Unit: "ppm"},
	PM1:                  {Name: "PM1.0", Unit: "µg/m³"},
	PM25:                 {Name: "PM2.5", Unit: "µg/m³"},
	PM4:                  {Name: "PM4.0", Unit: "µg/m³"},
	PM10:                 {Name: "PM10", Unit: "µg/m³"},
	CO:                   {Name: "CO", Unit: "ppm"},
	O3:                   {Name: "O₃", Unit: "ppm"},
	NO2:                  {Name: "NO₂", Unit: "ppm"},
	IAQ:                  {Name: "IAQ", Unit: "%"},
	ThermalIndicator:     {Name: "Indicador Térmico", Unit: "%"},
	VentilationIndicator: {Name: "Indicador de Ventilación", Unit: "%"},
	COVID19:              {Name: "COVID-19", Unit: "%"},
}

// ParseParameter canonicalizes a raw key: trims, splits camelCase, lower-cases,
// maps '-' and ' ' to '_' and drops '.' ("thermalIndicator" -> "thermal_indicator",
// "PM2.5" -> "pm25"). Keys outside the catalog are accepted as long as they are
// well formed; only malformed keys fail with ErrInvalidParameter.
func ParseParameter(raw string) (Parameter, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidParameter)
	}

	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '.':
			continue
		case r == '-' || r == ' ':
			b.WriteRune('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && (isLower(runes[i-1]) || isDigit(runes[i-1])) {
				b.WriteRune('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		case isLower(r) || isDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidParameter, raw)
		}
	}

	p := Parameter(b.String())
	if p == "" || strings.Trim(string(p), "_") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidParameter, raw)
	}
	return p, nil
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Info returns the catalog entry, ErrUnknownParameter when p is not catalogued
func (p Parameter) Info() (ParameterInfo, error) {
	info, ok := catalog[p]
	if !ok {
		return ParameterInfo{}, fmt.Errorf("%w: %s", ErrUnknownParameter, p)
	}
	return info, nil
}

// InCatalog reports whether p has a catalog entry
func (p Parameter) InCatalog() bool {
	_, ok := catalog[p]
	return ok
}

func (p Parameter) String() string { return string(p) }

// Catalog returns every catalogued parameter in display order
func Catalog() []Parameter {
	out := make([]Parameter, len(catalogOrder))
	copy(out, catalogOrder)
	return out
}
