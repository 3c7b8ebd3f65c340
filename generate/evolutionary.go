package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/product"
	"github.com/crillab/pledge/progress"
)

// seedShare is the part of the generation progress spent drawing the initial sample, in percent.
const seedShare = 20

// Evolutionary is a (1+1) evolutionary search maximizing the sum of pairwise distances.
//
// The search starts from a sample drawn from the oracle. At each generation, one
// product is mutated by flipping a few free features. An invalid mutant is replaced
// by a product drawn from the oracle. The mutant replaces its parent if the fitness
// of the set does not decrease.
type Evolutionary struct{}

// Name returns "evolutionary".
func (Evolutionary) Name() string { return "evolutionary" }

// Generate returns up to opts.Count distinct valid products.
// If c is nil, all features are considered free.
func (e Evolutionary) Generate(ctx context.Context, o oracle.Oracle, c *classify.Classification, opts Options) (*Result, error) {
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
	res := &Result{}
	if res.Status, err = sample(ctx, g, set, opts.Count, opts.Report.Scale(0, seedShare)); err != nil {
		return nil, err
	}
	if res.Status == StatusComplete && set.Len() > 1 {
		sopts := opts
		sopts.Report = opts.Report.Scale(seedShare, 100)
		s := newSearch(set, freeFeatures(c, o.NbFeatures()), g, sopts)
		if res.Status, res.Generations, err = s.run(ctx); err != nil {
			return nil, err
		}
	}
	res.Products = set.Products()
	res.Rebuilds = g.rebuilds
	res.Fitness = fitness(res.Products, opts.Metric, opts.Metrics)
	opts.Report.Report(progress.Generate, 100)
	opts.Metrics.Generated(e.Name(), len(res.Products))
	return res, nil
}

func freeFeatures(c *classify.Classification, nbFeatures int) []int {
	if c != nil {
		return c.Free()
	}
	res := make([]int, nbFeatures)
	for i := range res {
		res[i] = i + 1
	}
	return res
}

// search is the state of an evolutionary search.
// dists[i][j] is the distance between products i and j of set,
// contrib[i] the sum of the distances between product i and all others.
type search struct {
	set     *product.Set
	free    []int
	g       *guard
	opts    Options
	dists   [][]float64
	contrib []float64
}

func newSearch(set *product.Set, free []int, g *guard, opts Options) *search {
	n := set.Len()
	s := &search{
		set:     set,
		free:    free,
		g:       g,
		opts:    opts,
		dists:   make([][]float64, n),
		contrib: make([]float64, n),
	}
	for i := range s.dists {
		s.dists[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := dist(opts.Metric, set.At(i), set.At(j), opts.Metrics)
			s.dists[i][j], s.dists[j][i] = d, d
			s.contrib[i] += d
			s.contrib[j] += d
		}
	}
	return s
}

// run mutates the set until the context is done or the search stalls.
// It returns the number of generations.
func (s *search) run(ctx context.Context) (Status, int, error) {
	if len(s.free) == 0 {
		return StatusStalled, 0, nil
	}
	start := time.Now()
	budget := s.opts.Budget
	stall, gen, pct := 0, 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return stopStatus(err), gen, nil
		}
		if stall >= s.opts.MaxStall {
			return StatusStalled, gen, nil
		}
		gen++
		improved, err := s.step()
		if err != nil {
			return 0, gen, err
		}
		if improved {
			stall = 0
		} else {
			stall++
		}
		p := stall * 100 / s.opts.MaxStall
		if budget > 0 {
			if e := int(time.Since(start) * 100 / budget); e > p {
				p = e
			}
		}
		if p > pct {
			pct = p
			s.opts.Report.Report(progress.Generate, pct)
		}
	}
}

// step runs one generation, and indicates whether the fitness strictly increased.
func (s *search) step() (bool, error) {
	rng := s.opts.Rand
	n := s.set.Len()
	i := rng.Intn(n)
	k := s.opts.MaxFlips
	if k > len(s.free) {
		k = len(s.free)
	}
	k = 1 + rng.Intn(k)
	flipped := make([]int, k)
	for j, idx := range rng.Perm(len(s.free))[:k] {
		flipped[j] = s.free[idx]
	}
	child := s.set.At(i).Flip(flipped...)
	valid, err := s.g.satisfiable(child.Literals())
	if err != nil {
		return false, err
	}
	if !valid {
		if child, err = s.g.draw(); err != nil {
			return false, err
		}
	}
	if s.set.Contains(child) {
		return false, nil
	}
	row := make([]float64, n)
	sum := 0.0
	for j := 0; j < n; j++ {
		if j != i {
			row[j] = dist(s.opts.Metric, child, s.set.At(j), s.opts.Metrics)
			sum += row[j]
		}
	}
	delta := sum - s.contrib[i]
	if delta < 0 {
		return false, nil
	}
	s.set.Replace(i, child)
	for j := 0; j < n; j++ {
		if j != i {
			s.contrib[j] += row[j] - s.dists[i][j]
			s.dists[i][j], s.dists[j][i] = row[j], row[j]
		}
	}
	s.contrib[i] = sum
	return delta > 0, nil
}
