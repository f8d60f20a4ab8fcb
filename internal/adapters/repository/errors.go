package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidLimit      = errors.New("invalid list limit")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
