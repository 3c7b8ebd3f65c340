package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/product"
	"github.com/crillab/pledge/progress"
)

// Unpredictable draws products from the randomized enumeration of the oracle.
// When the oracle is exhausted, it is rebuilt with a new relabeling and the enumeration resumes.
type Unpredictable struct{}

// Name returns "unpredictable".
func (Unpredictable) Name() string { return "unpredictable" }

// Generate returns up to opts.Count distinct valid products.
// The classification is not used and can be nil.
func (u Unpredictable) Generate(ctx context.Context, o oracle.Oracle, _ *classify.Classification, opts Options) (*Result, error) {
	if opts.Count < 0 {
		return nil, fmt.Errorf("invalid number of products %d", opts.Count)
	}
	opts = opts.withDefaults()
	ctx, cancel := withBudget(ctx, opts.Budget)
	defer cancel()
	g := &guard{o: o}
	sat, err := g.satisfiable(nil)
	if err != nil {
		return nil, err
	}
	if !sat {
		return &Result{Status: StatusUnsatisfiable, Rebuilds: g.rebuilds}, nil
	}
	set := product.NewSet(opts.Count)
	opts.Report.Report(progress.Generate, 0)
	status, err := sample(ctx, g, set, opts.Count, opts.Report)
	if err != nil {
		return nil, err
	}
	products := set.Products()
	opts.Metrics.Generated(u.Name(), len(products))
	return &Result{
		Products: products,
		Status:   status,
		Rebuilds: g.rebuilds,
		Fitness:  fitness(products, opts.Metric, opts.Metrics),
	}, nil
}

// maxIdleBuilds is the number of consecutive builds bringing no new product after which
// the solution space is considered saturated.
const maxIdleBuilds = 8

// sample adds products enumerated by the oracle to set until it holds count products.
// The model must be satisfiable.
func sample(ctx context.Context, g *guard, set *product.Set, count int, report progress.Func) (Status, error) {
	fresh, idle := 0, 0 // fresh is the number of new products since the last build
	for set.Len() < count {
		if err := ctx.Err(); err != nil {
			return stopStatus(err), nil
		}
		p, err := g.next()
		switch {
		case errors.Is(err, oracle.ErrNoMoreModels):
			// The current build enumerated the whole solution space.
			return StatusSpaceCovered, nil
		case errors.Is(err, oracle.ErrExhausted):
			if fresh > 0 {
				idle = 0
			} else if idle++; idle >= maxIdleBuilds {
				return StatusSaturated, nil
			}
			if err := g.rebuild(); err != nil {
				return 0, fmt.Errorf("%w: could not rebuild oracle: %v", ErrGenerationFailed, err)
			}
			fresh = 0
			continue
		case err != nil:
			return 0, err
		}
		if set.Add(p) {
			fresh++
			report.Ratio(progress.Generate, set.Len(), count)
		}
	}
	return StatusComplete, nil
}
