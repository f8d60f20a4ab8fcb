package service

import "errors"

// Sentinel kinds returned by the analysis service.
var (
	ErrEmptyDataset        = errors.New("dataset has no observations")
	ErrNoFitter            = errors.New("no coefficient source configured")
	ErrConcordanceMismatch = errors.New("concordance cross-check disagrees")
	ErrQueueFull           = errors.New("analysis queue is full")
	ErrNotStarted          = errors.New("service not started")
	ErrJobNotFound         = errors.New("analysis not found")
	ErrReportNotReady      = errors.New("analysis has no report yet")
	ErrTooManyObservations = errors.New("too many observations")
)
