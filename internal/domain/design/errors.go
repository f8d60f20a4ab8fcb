package design

import "errors"

// Sentinel kinds for design matrix and risk scoring errors.
var (
	ErrUnknownFeature      = errors.New("unknown feature")
	ErrDuplicateFeature    = errors.New("duplicate feature")
	ErrEmptyColumn         = errors.New("column has no observed values")
	ErrInvalidValue        = errors.New("numeric value must be finite")
	ErrCoefficientMismatch = errors.New("coefficients do not match design columns")
	ErrInvalidCoefficient  = errors.New("coefficient must be finite")
	ErrShape               = errors.New("matrix shape mismatch")
)
