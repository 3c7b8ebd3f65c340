package prioritize

import (
	"context"

	"github.com/crillab/pledge/distance"
	"github.com/crillab/pledge/product"
)

// Default parameters of NearOptimal.
const (
	DefaultWindow = 8
	DefaultPasses = 16
)

// epsilon is the minimal score improvement for a move to be applied.
const epsilon = 1e-9

// NearOptimal refines the greedy order with local moves.
//
// Each product is moved up to Window positions earlier when that increases the
// prefix diversity of the order. Passes over the whole order are repeated until
// no move applies, or Passes passes were made. The resulting order is never
// worse than the greedy one.
type NearOptimal struct {
	Window int // 0 means DefaultWindow
	Passes int // 0 means DefaultPasses
}

// Name returns "near-optimal".
func (NearOptimal) Name() string { return "near-optimal" }

// Prioritize orders products.
// If ctx is done before the end, the best order found so far is returned.
func (no NearOptimal) Prioritize(ctx context.Context, products []*product.Product, metric distance.Metric) (*Result, error) {
	dists, skipped, err := Matrix(ctx, products, metric)
	if err != nil {
		if ctx.Err() != nil {
			return identity(products, ctx.Err()), nil
		}
		return nil, err
	}
	order, status := greedyOrder(ctx, dists)
	if status == StatusComplete {
		status = no.refine(ctx, dists, order)
	}
	return result(products, dists, order, status, skipped), nil
}

// refine improves order in place.
func (no NearOptimal) refine(ctx context.Context, dists [][]float64, order []int) Status {
	window, passes := no.Window, no.Passes
	if window <= 0 {
		window = DefaultWindow
	}
	if passes <= 0 {
		passes = DefaultPasses
	}
	n := len(order)
	// cov[k] is the sum of distances between order[k] and its predecessors.
	cov := make([]float64, n)
	coverage := func(k int) {
		cov[k] = 0
		for i := 0; i < k; i++ {
			cov[k] += dists[order[i]][order[k]]
		}
	}
	for k := range order {
		coverage(k)
	}
	for pass := 0; pass < passes; pass++ {
		improved := false
		for b := 1; b < n; b++ {
			if err := ctx.Err(); err != nil {
				return stopStatus(err)
			}
			// Moving y one step earlier, past x at position a, changes the score by
			// the sum of distances from y to the products before a, minus the same sum for x.
			y := order[b]
			sy := cov[b]
			delta, best, bestPos := 0.0, epsilon, -1
			for a := b - 1; a >= 0 && a >= b-window; a-- {
				sy -= dists[y][order[a]]
				delta += sy - cov[a]
				if delta > best {
					best, bestPos = delta, a
				}
			}
			if bestPos >= 0 {
				copy(order[bestPos+1:b+1], order[bestPos:b])
				order[bestPos] = y
				for k := bestPos; k <= b; k++ {
					coverage(k)
				}
				improved = true
			}
		}
		if !improved {
			break
		}
	}
	return StatusComplete
}
