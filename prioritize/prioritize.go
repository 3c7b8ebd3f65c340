// Package prioritize orders product sets so that the most dissimilar products come first.
//
// Running the products in the returned order front-loads pairwise diversity:
// when only the first k products of the list can be tested, they are as different
// from each other as the strategy could make them.
package prioritize

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/crillab/pledge/distance"
	"github.com/crillab/pledge/product"
)

// Status indicates whether a prioritization went to completion.
type Status byte

const (
	// StatusComplete means the strategy ran to completion.
	StatusComplete = Status(iota)
	// StatusDeadline means the deadline of the context expired.
	StatusDeadline
	// StatusCancelled means the context was cancelled.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusDeadline:
		return "deadline"
	case StatusCancelled:
		return "cancelled"
	default:
		panic("invalid prioritization status")
	}
}

func stopStatus(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusDeadline
	}
	return StatusCancelled
}

// Result is an ordered product set.
// The Coverage of each product is the sum of its distances to the products placed before it.
type Result struct {
	Products   []*product.Product
	FitnessSum float64 // Sum of all pairwise distances
	Status     Status
	Skipped    int // Number of pairs whose distance was undefined and counted as 0
}

// A Strategy orders a product set.
// The input slice and its products are left untouched: the result holds copies.
type Strategy interface {
	Name() string
	Prioritize(ctx context.Context, products []*product.Product, metric distance.Metric) (*Result, error)
}

var strategies = map[string]Strategy{}

// Register makes a strategy available through Lookup.
// It panics if a strategy with the same name was already registered.
func Register(s Strategy) {
	if _, ok := strategies[s.Name()]; ok {
		panic(fmt.Sprintf("prioritization strategy %q already registered", s.Name()))
	}
	strategies[s.Name()] = s
}

// Lookup returns the strategy with the given name.
func Lookup(name string) (Strategy, error) {
	s, ok := strategies[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown prioritization strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the registered strategies.
func Names() []string {
	res := make([]string, 0, len(strategies))
	for name := range strategies {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func init() {
	Register(Greedy{})
	Register(NearOptimal{})
}

// Matrix returns the symmetric matrix of pairwise distances between products.
// Rows are computed concurrently. Undefined distances are counted as 0, and their number is returned.
func Matrix(ctx context.Context, products []*product.Product, metric distance.Metric) (dists [][]float64, skipped int, err error) {
	n := len(products)
	dists = make([][]float64, n)
	for i := range dists {
		dists[i] = make([]float64, n)
	}
	skips := make([]int, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j := i + 1; j < n; j++ {
				d, err := metric.Distance(products[i], products[j])
				if errors.Is(err, distance.ErrDomain) {
					skips[i]++
					continue
				} else if err != nil {
					return fmt.Errorf("could not compute distance between products %d and %d: %w", i, j, err)
				}
				dists[i][j], dists[j][i] = d, d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	for _, s := range skips {
		skipped += s
	}
	return dists, skipped, nil
}

// sum returns the sum of the upper triangle of dists.
func sum(dists [][]float64) float64 {
	res := 0.0
	for i := range dists {
		for j := i + 1; j < len(dists); j++ {
			res += dists[i][j]
		}
	}
	return res
}

// FitnessSum returns the sum of the pairwise distances between products.
func FitnessSum(products []*product.Product, metric distance.Metric) (float64, error) {
	dists, _, err := Matrix(context.Background(), products, metric)
	if err != nil {
		return 0, err
	}
	return sum(dists), nil
}

// score is the prefix diversity of order: each pair contributes its distance,
// weighted by the number of positions from the later of both products to the end of the list.
// Orders that place distant pairs early get higher scores.
func score(dists [][]float64, order []int) float64 {
	n := len(order)
	res := 0.0
	for k := 1; k < n; k++ {
		w := float64(n - k)
		for i := 0; i < k; i++ {
			res += dists[order[i]][order[k]] * w
		}
	}
	return res
}

// PrefixDiversity returns the prefix diversity of the products, in their current order.
func PrefixDiversity(products []*product.Product, metric distance.Metric) (float64, error) {
	dists, _, err := Matrix(context.Background(), products, metric)
	if err != nil {
		return 0, err
	}
	order := make([]int, len(products))
	for i := range order {
		order[i] = i
	}
	return score(dists, order), nil
}

// result builds the result holding copies of products in the given order.
func result(products []*product.Product, dists [][]float64, order []int, status Status, skipped int) *Result {
	res := &Result{
		Products:   make([]*product.Product, len(order)),
		FitnessSum: sum(dists),
		Status:     status,
		Skipped:    skipped,
	}
	for k, idx := range order {
		p := products[idx].Clone()
		p.Coverage = 0
		for i := 0; i < k; i++ {
			p.Coverage += dists[order[i]][idx]
		}
		res.Products[k] = p
	}
	return res
}

// identity returns the products in their input order, as a cancelled prioritization.
func identity(products []*product.Product, err error) *Result {
	res := &Result{Products: make([]*product.Product, len(products)), Status: stopStatus(err)}
	for i, p := range products {
		res.Products[i] = p.Clone()
		res.Products[i].Coverage = 0
	}
	return res
}
