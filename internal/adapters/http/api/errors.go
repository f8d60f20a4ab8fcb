package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/tenure/internal/adapters/dataset"
	"github.com/okian/tenure/internal/adapters/repository"
	service "github.com/okian/tenure/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
	ErrNotReady     = errors.New("not ready")
	ErrTooLarge     = errors.New("request too large")
	ErrUnavailable  = errors.New("unavailable")
)

// Error attaches the failing operation and an API kind to a cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind classifies err as kind for op.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap classifies err by its cause for op.
func Wrap(op string, err error) error {
	return WrapKind(op, kindOf(err), err)
}

// kindOf maps errors of the lower layers to an API kind.
func kindOf(err error) error {
	switch {
	case errors.Is(err, service.ErrQueueFull):
		return ErrBackpressure
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, service.ErrReportNotReady):
		return ErrNotReady
	case errors.Is(err, service.ErrTooManyObservations):
		return ErrTooLarge
	case errors.Is(err, service.ErrNotStarted):
		return ErrUnavailable
	case errors.Is(err, service.ErrEmptyDataset),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, dataset.ErrMissingColumn),
		errors.Is(err, dataset.ErrInvalidDuration),
		errors.Is(err, dataset.ErrInvalidEvent),
		errors.Is(err, dataset.ErrInvalidNumber),
		errors.Is(err, dataset.ErrNoRows):
		return ErrBadRequest
	}
	return nil
}

// statusOf returns the HTTP status and error code for err.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrNotReady):
		return http.StatusConflict, "not_ready"
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
