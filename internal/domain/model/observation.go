// Package model contains domain models passed between layers.
package model

import "math"

// Observation is one subject of a survival analysis.
// Numeric covariates use NaN for a missing value, categorical ones use "".
type Observation struct {
	ID          string             // subject identifier, informational only
	Duration    float64            // time to event or censoring
	Event       bool               // true when the event was observed at Duration
	Numeric     map[string]float64 // raw numeric covariates
	Categorical map[string]string  // raw categorical covariates
}

// NumericValue returns the numeric covariate name. ok is false when the
// observation does not carry the covariate or its value is missing.
func (o Observation) NumericValue(name string) (float64, bool) {
	v, ok := o.Numeric[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// CategoricalValue returns the categorical covariate name. ok is false when
// the observation does not carry the covariate or its value is missing.
func (o Observation) CategoricalValue(name string) (string, bool) {
	v, ok := o.Categorical[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// HasNumeric reports whether the observation carries the numeric covariate,
// missing or not.
func (o Observation) HasNumeric(name string) bool {
	_, ok := o.Numeric[name]
	return ok
}

// HasCategorical reports whether the observation carries the categorical
// covariate, missing or not.
func (o Observation) HasCategorical(name string) bool {
	_, ok := o.Categorical[name]
	return ok
}

// Durations extracts the duration vector of obs.
func Durations(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i := range obs {
		out[i] = obs[i].Duration
	}
	return out
}

// Events extracts the event vector of obs.
func Events(obs []Observation) []bool {
	out := make([]bool, len(obs))
	for i := range obs {
		out[i] = obs[i].Event
	}
	return out
}

// EventCount returns how many observations experienced the event.
func EventCount(obs []Observation) int {
	n := 0
	for i := range obs {
		if obs[i].Event {
			n++
		}
	}
	return n
}
