package fit

import "errors"

// Sentinel kinds for coefficient sources.
var (
	ErrLengthMismatch   = errors.New("durations and events must match the design rows")
	ErrLoadCoefficients = errors.New("load coefficients failed")
)
