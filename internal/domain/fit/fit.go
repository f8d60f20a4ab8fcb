// Package fit supplies hazard coefficients for a design matrix. Coefficients
// are estimated outside this module; a Fitter only aligns them to the columns
// it is given.
package fit

import (
	"context"
	"fmt"

	"github.com/okian/tenure/internal/domain/design"
)

// Fitter produces one coefficient per design column.
type Fitter interface {
	Fit(ctx context.Context, m design.Matrix, durations []float64, events []bool) (design.Coefficients, error)
}

// Static serves a fixed name to coefficient mapping.
type Static struct {
	values map[string]float64
}

// NewStatic copies values into a Static fitter.
func NewStatic(values map[string]float64) Static {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Static{values: cp}
}

// Fit aligns the stored coefficients to the columns of m.
func (s Static) Fit(ctx context.Context, m design.Matrix, durations []float64, events []bool) (design.Coefficients, error) {
	if err := checkInputs(ctx, m, durations, events); err != nil {
		return nil, err
	}
	return design.CoefficientsFromMap(s.values, m.Columns())
}

func checkInputs(ctx context.Context, m design.Matrix, durations []float64, events []bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(durations) != m.Rows() || len(events) != m.Rows() {
		return fmt.Errorf("%w: %d rows, %d durations, %d events", ErrLengthMismatch, m.Rows(), len(durations), len(events))
	}
	return nil
}
