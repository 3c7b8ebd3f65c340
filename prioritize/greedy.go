package prioritize

import (
	"context"

	"github.com/crillab/pledge/distance"
	"github.com/crillab/pledge/product"
)

// Greedy repeatedly appends the two remaining products that are the most distant from each other.
// Ties are broken by taking the first pair in row-major order, so the result is deterministic.
type Greedy struct{}

// Name returns "greedy".
func (Greedy) Name() string { return "greedy" }

// Prioritize orders products.
// If ctx is done before the end, the remaining products are appended in input order.
func (Greedy) Prioritize(ctx context.Context, products []*product.Product, metric distance.Metric) (*Result, error) {
	dists, skipped, err := Matrix(ctx, products, metric)
	if err != nil {
		if ctx.Err() != nil {
			return identity(products, ctx.Err()), nil
		}
		return nil, err
	}
	order, status := greedyOrder(ctx, dists)
	return result(products, dists, order, status, skipped), nil
}

func greedyOrder(ctx context.Context, dists [][]float64) ([]int, Status) {
	n := len(dists)
	order := make([]int, 0, n)
	picked := make([]bool, n)
	for len(order)+1 < n {
		if err := ctx.Err(); err != nil {
			for i := range picked {
				if !picked[i] {
					order = append(order, i)
				}
			}
			return order, stopStatus(err)
		}
		best, bi, bj := -1.0, -1, -1
		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !picked[j] && dists[i][j] > best {
					best, bi, bj = dists[i][j], i, j
				}
			}
		}
		order = append(order, bi, bj)
		picked[bi], picked[bj] = true, true
	}
	for i := range picked {
		if !picked[i] {
			order = append(order, i)
		}
	}
	return order, StatusComplete
}
