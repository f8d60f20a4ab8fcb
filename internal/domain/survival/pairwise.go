package survival

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// PairwiseConcordance computes the same index as Concordance by enumerating
// every ordered pair. Rows are split across up to workers goroutines and the
// partial counts are summed, so the result does not depend on workers.
// It is quadratic and meant for moderate n and for cross-checking.
func PairwiseConcordance(ctx context.Context, durations []float64, events []bool, risk []float64, workers int) (Index, error) {
	if err := checkTriples(durations, events, risk); err != nil {
		return Index{}, err
	}
	n := len(durations)
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if n == 0 {
		return Index{}, nil
	}

	partial := make([]Index, workers)
	chunk := (n + workers - 1) / workers

	g, gCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, n)
		g.Go(func() error {
			var acc Index
			for i := lo; i < hi; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				if !events[i] {
					continue
				}
				for j := 0; j < n; j++ {
					if durations[j] <= durations[i] {
						continue
					}
					acc.Comparable++
					switch {
					case risk[i] > risk[j]:
						acc.Concordant++
					case risk[i] == risk[j]:
						acc.Tied++
					default:
						acc.Discordant++
					}
				}
			}
			partial[w] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Index{}, err
	}

	var idx Index
	for _, p := range partial {
		idx = idx.add(p)
	}
	return idx, nil
}
