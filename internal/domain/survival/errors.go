package survival

import "errors"

// Sentinel kinds for survival estimation errors.
var (
	ErrEmptyInput      = errors.New("empty input")
	ErrLengthMismatch  = errors.New("input lengths differ")
	ErrInvalidDuration = errors.New("duration must be finite and non-negative")
	ErrInvalidRisk     = errors.New("risk score must be finite")
)
