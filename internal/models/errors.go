package models

import "errors"

var (
	// ErrInvalidParameter malformed parameter key (empty, illegal characters)
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnknownParameter parameter has no catalog entry. Classification never
	// returns it: an uncatalogued parameter resolves to NoBounds and is GOOD.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrInvalidReading NaN or infinite value
	ErrInvalidReading = errors.New("invalid reading")

	// ErrInvalidThreshold inverted good or warning band
	ErrInvalidThreshold = errors.New("invalid threshold")

	ErrInvalidAlertConfig = errors.New("invalid alert config")
)
