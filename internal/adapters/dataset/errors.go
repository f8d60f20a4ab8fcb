package dataset

import "errors"

// Sentinel kinds for dataset loading errors.
var (
	ErrMissingColumn   = errors.New("missing column")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidEvent    = errors.New("invalid event flag")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrNoRows          = errors.New("no data rows")
)
