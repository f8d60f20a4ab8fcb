package survival

import (
	"fmt"
	"math"
	"sort"
)

// EstimateCurve computes the Kaplan-Meier survival curve of the given
// durations and event flags.
//
// Subjects censored at a time t are still counted in the risk set for the
// update at t and leave it afterwards. Only times with at least one event add
// a point to the curve.
func EstimateCurve(durations []float64, events []bool) (Curve, error) {
	if len(durations) != len(events) {
		return Curve{}, fmt.Errorf("%w: %d durations, %d events", ErrLengthMismatch, len(durations), len(events))
	}
	if len(durations) == 0 {
		return Curve{}, ErrEmptyInput
	}
	if err := checkDurations(durations); err != nil {
		return Curve{}, err
	}

	n := len(durations)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return durations[order[a]] < durations[order[b]] })

	atRisk := n
	surv := 1.0
	points := []Point{{Time: 0, Survival: 1, AtRisk: n}}

	for i := 0; i < n; {
		t := durations[order[i]]
		d, c := 0, 0
		j := i
		for ; j < n && durations[order[j]] == t; j++ {
			if events[order[j]] {
				d++
			} else {
				c++
			}
		}
		i = j

		if atRisk <= 0 {
			break
		}
		if d > 0 {
			surv *= 1 - float64(d)/float64(atRisk)
			points = append(points, Point{Time: t, Survival: surv, AtRisk: atRisk, Events: d, Censored: c})
		}
		atRisk -= d + c
	}

	return Curve{points: points}, nil
}

func checkDurations(durations []float64) error {
	for i, d := range durations {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return fmt.Errorf("%w: durations[%d]=%g", ErrInvalidDuration, i, d)
		}
	}
	return nil
}
