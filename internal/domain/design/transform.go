// Package design turns raw covariates into a numeric design matrix and turns
// hazard coefficients into hazard ratios and per-subject risk scores.
//
// Column layout is deterministic: numeric covariates in the requested order,
// then one indicator column per category, grouped by covariate in the
// requested order and sorted by category within a covariate. Indicator
// columns are named "<covariate>_<category>".
package design

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/okian/tenure/internal/domain/model"
)

// NumericColumn is the fitted state of a numeric covariate.
type NumericColumn struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
}

// CategoricalColumn is the fitted state of a categorical covariate.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Mode       string   `json:"mode"`
	Categories []string `json:"categories"`
}

// Transform holds what was learned from the fitting population: imputation
// values and category vocabularies. It never changes after Fit, so the same
// value can be applied to new observations and yields the same columns.
type Transform struct {
	numeric     []NumericColumn
	categorical []CategoricalColumn
}

// Fit learns imputation values and vocabularies for the named covariates.
// A covariate absent from every observation is an error.
func Fit(obs []model.Observation, numeric, categorical []string) (Transform, error) {
	if err := checkNames(numeric, categorical); err != nil {
		return Transform{}, err
	}

	t := Transform{
		numeric:     make([]NumericColumn, 0, len(numeric)),
		categorical: make([]CategoricalColumn, 0, len(categorical)),
	}

	for _, name := range numeric {
		present := false
		values := make([]float64, 0, len(obs))
		for i := range obs {
			if !obs[i].HasNumeric(name) {
				continue
			}
			present = true
			v, ok := obs[i].NumericValue(name)
			if !ok {
				continue
			}
			if math.IsInf(v, 0) {
				return Transform{}, fmt.Errorf("%w: %s=%g", ErrInvalidValue, name, v)
			}
			values = append(values, v)
		}
		if !present {
			return Transform{}, fmt.Errorf("%w: numeric %q", ErrUnknownFeature, name)
		}
		if len(values) == 0 {
			return Transform{}, fmt.Errorf("%w: %q", ErrEmptyColumn, name)
		}
		t.numeric = append(t.numeric, NumericColumn{Name: name, Median: median(values)})
	}

	for _, name := range categorical {
		present := false
		counts := make(map[string]int)
		for i := range obs {
			if !obs[i].HasCategorical(name) {
				continue
			}
			present = true
			if v, ok := obs[i].CategoricalValue(name); ok {
				counts[v]++
			}
		}
		if !present {
			return Transform{}, fmt.Errorf("%w: categorical %q", ErrUnknownFeature, name)
		}
		if len(counts) == 0 {
			return Transform{}, fmt.Errorf("%w: %q", ErrEmptyColumn, name)
		}
		cats := make([]string, 0, len(counts))
		for c := range counts {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		t.categorical = append(t.categorical, CategoricalColumn{Name: name, Mode: mode(cats, counts), Categories: cats})
	}

	// An indicator name can collide with a numeric covariate ("plan_a" and plan=a).
	if err := checkColumns(t.Columns()); err != nil {
		return Transform{}, err
	}
	return t, nil
}

// Build fits a transform on obs and applies it to the same observations.
func Build(obs []model.Observation, numeric, categorical []string) (Matrix, Transform, error) {
	t, err := Fit(obs, numeric, categorical)
	if err != nil {
		return Matrix{}, Transform{}, err
	}
	m, err := t.Apply(obs)
	if err != nil {
		return Matrix{}, Transform{}, err
	}
	return m, t, nil
}

// Apply builds the design matrix of obs. Missing values are imputed with the
// fitted median or mode; a category never seen during Fit leaves every
// indicator of its covariate at zero.
func (t Transform) Apply(obs []model.Observation) (Matrix, error) {
	columns := t.Columns()
	width := len(columns)
	data := make([]float64, len(obs)*width)

	offsets := make([]map[string]int, len(t.categorical))
	for k, c := range t.categorical {
		offsets[k] = make(map[string]int, len(c.Categories))
		for j, cat := range c.Categories {
			offsets[k][cat] = j
		}
	}

	for i := range obs {
		row := data[i*width : (i+1)*width]
		for j, c := range t.numeric {
			v, ok := obs[i].NumericValue(c.Name)
			switch {
			case !ok:
				v = c.Median
			case math.IsInf(v, 0):
				return Matrix{}, fmt.Errorf("%w: row %d %s=%g", ErrInvalidValue, i, c.Name, v)
			}
			row[j] = v
		}
		base := len(t.numeric)
		for k, c := range t.categorical {
			v, ok := obs[i].CategoricalValue(c.Name)
			if !ok {
				v = c.Mode
			}
			if j, seen := offsets[k][v]; seen {
				row[base+j] = 1
			}
			base += len(c.Categories)
		}
	}

	return newMatrix(columns, data, len(obs)), nil
}

// Columns returns the design column names produced by Apply.
func (t Transform) Columns() []string {
	out := make([]string, 0, t.Width())
	for _, c := range t.numeric {
		out = append(out, c.Name)
	}
	for _, c := range t.categorical {
		for _, cat := range c.Categories {
			out = append(out, c.Name+"_"+cat)
		}
	}
	return out
}

// Width returns the number of design columns.
func (t Transform) Width() int {
	w := len(t.numeric)
	for _, c := range t.categorical {
		w += len(c.Categories)
	}
	return w
}

// Numeric returns a copy of the fitted numeric columns.
func (t Transform) Numeric() []NumericColumn {
	return append([]NumericColumn(nil), t.numeric...)
}

// Categorical returns a copy of the fitted categorical columns.
func (t Transform) Categorical() []CategoricalColumn {
	out := make([]CategoricalColumn, len(t.categorical))
	for i, c := range t.categorical {
		c.Categories = append([]string(nil), c.Categories...)
		out[i] = c
	}
	return out
}

type transformJSON struct {
	Numeric     []NumericColumn     `json:"numeric"`
	Categorical []CategoricalColumn `json:"categorical"`
}

// MarshalJSON encodes the fitted state so it can be stored next to a report.
func (t Transform) MarshalJSON() ([]byte, error) {
	return json.Marshal(transformJSON{Numeric: t.Numeric(), Categorical: t.Categorical()})
}

// UnmarshalJSON restores a transform encoded by MarshalJSON.
func (t *Transform) UnmarshalJSON(data []byte) error {
	var w transformJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var numeric, categorical []string
	for _, c := range w.Numeric {
		numeric = append(numeric, c.Name)
	}
	for _, c := range w.Categorical {
		categorical = append(categorical, c.Name)
		if !sort.StringsAreSorted(c.Categories) {
			return fmt.Errorf("categories of %q are not sorted", c.Name)
		}
	}
	if err := checkNames(numeric, categorical); err != nil {
		return err
	}
	restored := Transform{numeric: w.Numeric, categorical: w.Categorical}
	if err := checkColumns(restored.Columns()); err != nil {
		return err
	}
	*t = restored
	return nil
}

func checkNames(numeric, categorical []string) error {
	seen := make(map[string]struct{}, len(numeric)+len(categorical))
	for _, names := range [][]string{numeric, categorical} {
		for _, n := range names {
			if _, dup := seen[n]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateFeature, n)
			}
			seen[n] = struct{}{}
		}
	}
	return nil
}

// median of a non-empty slice; the slice is sorted in place.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// mode returns the most frequent category; ties go to the first in sorted order.
func mode(sorted []string, counts map[string]int) string {
	best := sorted[0]
	for _, c := range sorted[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
