package survival

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Index is Harrell's concordance index together with the pair counts it was
// computed from. The zero value is the undefined index.
type Index struct {
	Concordant int64
	Tied       int64
	Discordant int64
	Comparable int64
}

// Defined reports whether at least one comparable pair exists.
func (x Index) Defined() bool { return x.Comparable > 0 }

// Value returns the index, or NaN when it is undefined.
func (x Index) Value() float64 {
	v, ok := x.Float()
	if !ok {
		return math.NaN()
	}
	return v
}

// Float returns the index and whether it is defined.
func (x Index) Float() (float64, bool) {
	if x.Comparable == 0 {
		return 0, false
	}
	return (float64(x.Concordant) + 0.5*float64(x.Tied)) / float64(x.Comparable), true
}

// add accumulates the counts of y into x.
func (x Index) add(y Index) Index {
	return Index{
		Concordant: x.Concordant + y.Concordant,
		Tied:       x.Tied + y.Tied,
		Discordant: x.Discordant + y.Discordant,
		Comparable: x.Comparable + y.Comparable,
	}
}

type indexJSON struct {
	Value      *float64 `json:"value"`
	Concordant int64    `json:"concordant"`
	Tied       int64    `json:"tied"`
	Discordant int64    `json:"discordant"`
	Comparable int64    `json:"comparable"`
}

// MarshalJSON encodes the undefined index with a null value.
func (x Index) MarshalJSON() ([]byte, error) {
	w := indexJSON{Concordant: x.Concordant, Tied: x.Tied, Discordant: x.Discordant, Comparable: x.Comparable}
	if v, ok := x.Float(); ok {
		w.Value = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores the pair counts; the value is derived from them.
func (x *Index) UnmarshalJSON(data []byte) error {
	var w indexJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Concordant+w.Tied+w.Discordant != w.Comparable {
		return fmt.Errorf("inconsistent concordance counts: %d+%d+%d != %d", w.Concordant, w.Tied, w.Discordant, w.Comparable)
	}
	*x = Index{Concordant: w.Concordant, Tied: w.Tied, Discordant: w.Discordant, Comparable: w.Comparable}
	return nil
}

// Concordance computes Harrell's C-index of risk against right-censored
// durations.
//
// A pair (i, j) is comparable when subject i had the event and j's duration
// is strictly greater than i's. It is concordant when risk[i] > risk[j] and
// tied when the scores are equal. Subjects are swept in decreasing duration
// order while a rank tree holds the scores of every subject with a strictly
// greater duration, which gives O(n log n) overall.
func Concordance(durations []float64, events []bool, risk []float64) (Index, error) {
	if err := checkTriples(durations, events, risk); err != nil {
		return Index{}, err
	}

	n := len(durations)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return durations[order[a]] > durations[order[b]] })

	var idx Index
	tree := newRankTree()
	for i := 0; i < n; {
		t := durations[order[i]]
		j := i
		for j < n && durations[order[j]] == t {
			j++
		}

		later := int64(tree.Len())
		for k := i; k < j; k++ {
			s := order[k]
			if !events[s] {
				continue
			}
			idx.Concordant += int64(tree.CountBelow(risk[s]))
			idx.Tied += int64(tree.CountEqual(risk[s]))
			idx.Comparable += later
		}
		for k := i; k < j; k++ {
			tree.Insert(risk[order[k]])
		}
		i = j
	}
	idx.Discordant = idx.Comparable - idx.Concordant - idx.Tied
	return idx, nil
}

func checkTriples(durations []float64, events []bool, risk []float64) error {
	if len(durations) != len(events) || len(durations) != len(risk) {
		return fmt.Errorf("%w: %d durations, %d events, %d risk scores",
			ErrLengthMismatch, len(durations), len(events), len(risk))
	}
	if err := checkDurations(durations); err != nil {
		return err
	}
	for i, r := range risk {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: risk[%d]=%g", ErrInvalidRisk, i, r)
		}
	}
	return nil
}
