package design

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Coefficient is the fitted log-hazard coefficient of one design column.
type Coefficient struct {
	Name  string  `json:"feature"`
	Value float64 `json:"coef"`
}

// Coefficients is an ordered coefficient vector, one entry per design column.
type Coefficients []Coefficient

// Names returns the column names in order.
func (c Coefficients) Names() []string {
	out := make([]string, len(c))
	for i := range c {
		out[i] = c[i].Name
	}
	return out
}

// Values returns the coefficient values in order.
func (c Coefficients) Values() []float64 {
	out := make([]float64, len(c))
	for i, x := range c {
		out[i] = x.Value
	}
	return out
}

// Map returns the coefficients keyed by column name.
func (c Coefficients) Map() map[string]float64 {
	out := make(map[string]float64, len(c))
	for _, v := range c {
		out[v.Name] = v.Value
	}
	return out
}

// CoefficientsFromMap orders m by columns. The key set of m must equal the
// column set exactly and every value must be finite.
func CoefficientsFromMap(m map[string]float64, columns []string) (Coefficients, error) {
	if len(m) != len(columns) {
		return nil, fmt.Errorf("%w: %d coefficients for %d columns", ErrCoefficientMismatch, len(m), len(columns))
	}
	out := make(Coefficients, 0, len(columns))
	for _, name := range columns {
		v, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("%w: no coefficient for %q", ErrCoefficientMismatch, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s=%g", ErrInvalidCoefficient, name, v)
		}
		out = append(out, Coefficient{Name: name, Value: v})
	}
	return out, nil
}

// HazardRatio is one row of the hazard-ratio table.
type HazardRatio struct {
	Feature     string  `json:"feature"`
	Coef        float64 `json:"coef"`
	HazardRatio float64 `json:"hazard_ratio"`
}

// HazardRatios exponentiates every coefficient and orders the rows by hazard
// ratio, largest first. Equal ratios keep their coefficient order.
func HazardRatios(coefs Coefficients) []HazardRatio {
	out := make([]HazardRatio, len(coefs))
	for i, c := range coefs {
		out[i] = HazardRatio{Feature: c.Name, Coef: c.Value, HazardRatio: math.Exp(c.Value)}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].HazardRatio > out[b].HazardRatio
	})
	return out
}

// RiskScores returns the linear predictor of every row of m. Coefficients are
// matched to columns by name, so their order does not matter, but the two
// name sets must be equal.
func RiskScores(m Matrix, coefs Coefficients) ([]float64, error) {
	byName := make(map[string]float64, len(coefs))
	for _, c := range coefs {
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFeature, c.Name)
		}
		byName[c.Name] = c.Value
	}
	aligned, err := CoefficientsFromMap(byName, m.columns)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, m.rows)
	if m.dense == nil {
		return scores, nil
	}
	beta := mat.NewVecDense(len(aligned), aligned.Values())
	mat.NewVecDense(m.rows, scores).MulVec(m.dense, beta)
	return scores, nil
}
