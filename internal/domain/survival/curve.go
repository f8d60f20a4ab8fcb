// Package survival implements the Kaplan-Meier estimator and Harrell's
// concordance index for right-censored duration data.
package survival

import (
	"encoding/json"
	"fmt"
	"sort"
)

// medianSurvival is the survival level that defines the median survival time.
const medianSurvival = 0.5

// Point is one step of a survival curve. AtRisk, Events and Censored describe
// the risk set at Time before the step is applied.
type Point struct {
	Time     float64 `json:"time"`
	Survival float64 `json:"survival"`
	AtRisk   int     `json:"at_risk"`
	Events   int     `json:"events"`
	Censored int     `json:"censored"`
}

// Curve is an immutable right-continuous step function of survival
// probability over time. The first point is always (0, 1).
type Curve struct {
	points []Point
}

// Degenerate returns the one-point curve (0, 1) for a population of n subjects.
func Degenerate(n int) Curve {
	return Curve{points: []Point{{Time: 0, Survival: 1, AtRisk: n}}}
}

// Points returns a copy of the curve points in time order.
func (c Curve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// Len returns the number of points.
func (c Curve) Len() int { return len(c.points) }

// Times returns the time of every point.
func (c Curve) Times() []float64 {
	out := make([]float64, len(c.points))
	for i, p := range c.points {
		out[i] = p.Time
	}
	return out
}

// Survival returns the survival probability of every point.
func (c Curve) Survival() []float64 {
	out := make([]float64, len(c.points))
	for i, p := range c.points {
		out[i] = p.Survival
	}
	return out
}

// At evaluates the step function at t. Times before the origin survive with
// probability 1.
func (c Curve) At(t float64) float64 {
	// index of the first point strictly after t
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].Time > t })
	if i == 0 {
		return 1
	}
	return c.points[i-1].Survival
}

// Median returns the first time at which survival drops to 0.5 or below.
// ok is false when the curve never reaches that level.
func (c Curve) Median() (float64, bool) {
	for _, p := range c.points {
		if p.Survival <= medianSurvival {
			return p.Time, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the curve as its list of points.
func (c Curve) MarshalJSON() ([]byte, error) {
	if c.points == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.points)
}

// UnmarshalJSON decodes a list of points and checks the curve invariants.
func (c *Curve) UnmarshalJSON(data []byte) error {
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	if len(points) == 0 {
		c.points = nil
		return nil
	}
	if points[0].Time != 0 || points[0].Survival != 1 {
		return fmt.Errorf("curve must start at (0, 1), got (%g, %g)", points[0].Time, points[0].Survival)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Survival > points[i-1].Survival {
			return fmt.Errorf("curve increases at t=%g", points[i].Time)
		}
	}
	c.points = points
	return nil
}
